package remote

import (
	"strings"
	"time"
)

// Entry is one item of a directory listing. Buckets are directories; ID
// carries the backend identifier of the bucket or file.
type Entry struct {
	Time   time.Time
	Name   string
	ID     string
	Size   int64
	IsDir  bool
	Unsure bool
}

// Listing is the content of one remote directory.
type Listing struct {
	FirstListTime time.Time
	Path          Path
	Entries       []Entry
	Unsure        bool
}

// Append adds e to the listing.
func (l *Listing) Append(e Entry) {
	l.Entries = append(l.Entries, e)
}

// FindFileCmpCase returns the index of the entry called name, preferring
// an exact match over a case-insensitive one. It returns -1 when absent.
func (l *Listing) FindFileCmpCase(name string) int {
	folded := -1
	for i := range l.Entries {
		if l.Entries[i].Name == name {
			return i
		}
		if folded < 0 && strings.EqualFold(l.Entries[i].Name, name) {
			folded = i
		}
	}
	return folded
}

// HasUnsure reports whether the listing or any of its entries is marked
// unsure.
func (l *Listing) HasUnsure() bool {
	if l.Unsure {
		return true
	}
	for i := range l.Entries {
		if l.Entries[i].Unsure {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of l.
func (l *Listing) Clone() Listing {
	out := *l
	out.Entries = append([]Entry(nil), l.Entries...)
	return out
}
