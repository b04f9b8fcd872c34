// Package remote models the remote side of a session: slash separated
// paths, directory entries and listings.
package remote

import "strings"

// Path is an absolute remote path. The zero value is the empty path, which
// is distinct from the root "/".
type Path struct {
	segments []string
	valid    bool
}

// Root returns the root path.
func Root() Path { return Path{valid: true} }

// ParsePath parses an absolute slash separated path. "." segments are
// dropped and ".." removes the previous segment. Relative input yields the
// empty path.
func ParsePath(s string) Path {
	if !strings.HasPrefix(s, "/") {
		return Path{}
	}
	return Root().join(s)
}

func (p Path) join(s string) Path {
	segs := append([]string(nil), p.segments...)
	for _, part := range strings.Split(s, "/") {
		switch part {
		case "", ".":
		case "..":
			if len(segs) > 0 {
				segs = segs[:len(segs)-1]
			}
		default:
			segs = append(segs, part)
		}
	}
	return Path{segments: segs, valid: true}
}

// IsEmpty reports whether p is the zero path.
func (p Path) IsEmpty() bool { return !p.valid }

// IsRoot reports whether p is "/".
func (p Path) IsRoot() bool { return p.valid && len(p.segments) == 0 }

// SegmentCount returns the number of segments below the root.
func (p Path) SegmentCount() int { return len(p.segments) }

// Segment returns the i-th segment.
func (p Path) Segment(i int) string { return p.segments[i] }

// LastSegment returns the final segment, or "" for root and empty paths.
func (p Path) LastSegment() string {
	if len(p.segments) == 0 {
		return ""
	}
	return p.segments[len(p.segments)-1]
}

// Parent returns the path one level up. The parent of root is empty.
func (p Path) Parent() Path {
	switch len(p.segments) {
	case 0:
		return Path{}
	case 1:
		return Root()
	}
	return Path{segments: p.segments[:len(p.segments)-1:len(p.segments)-1], valid: true}
}

// Child returns p with name appended.
func (p Path) Child(name string) Path {
	if !p.valid {
		return Path{}
	}
	segs := make([]string, 0, len(p.segments)+1)
	segs = append(segs, p.segments...)
	return Path{segments: append(segs, name), valid: true}
}

// ChangePath applies sub to p the way a shell cd would: absolute sub
// replaces p, relative sub is joined onto it. It reports false when the
// result cannot be formed.
func (p Path) ChangePath(sub string) (Path, bool) {
	if sub == "" {
		return p, p.valid
	}
	if strings.HasPrefix(sub, "/") {
		return ParsePath(sub), true
	}
	if !p.valid {
		return Path{}, false
	}
	return p.join(sub), true
}

// IsParentOf reports whether p is a strict ancestor of other.
func (p Path) IsParentOf(other Path) bool {
	if !p.valid || !other.valid || len(p.segments) >= len(other.segments) {
		return false
	}
	for i, s := range p.segments {
		if other.segments[i] != s {
			return false
		}
	}
	return true
}

// Equal reports whether p and other name the same path.
func (p Path) Equal(other Path) bool {
	if p.valid != other.valid || len(p.segments) != len(other.segments) {
		return false
	}
	for i, s := range p.segments {
		if other.segments[i] != s {
			return false
		}
	}
	return true
}

// FormatFilename returns the full path of name inside p.
func (p Path) FormatFilename(name string) string {
	if p.IsRoot() {
		return "/" + name
	}
	return p.String() + "/" + name
}

func (p Path) String() string {
	if !p.valid {
		return ""
	}
	return "/" + strings.Join(p.segments, "/")
}
