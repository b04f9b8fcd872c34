package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	Connected Type = iota + 1
	ListingUpdated
	TransferStarted
	TransferProgress
	TransferCompleted
	TransferFailed
	FileDeleted
	DirCreated
	DirRemoved
	Disconnected
)

var typeNames = [...]string{
	Connected:         "Connected",
	ListingUpdated:    "ListingUpdated",
	TransferStarted:   "TransferStarted",
	TransferProgress:  "TransferProgress",
	TransferCompleted: "TransferCompleted",
	TransferFailed:    "TransferFailed",
	FileDeleted:       "FileDeleted",
	DirCreated:        "DirCreated",
	DirRemoved:        "DirRemoved",
	Disconnected:      "Disconnected",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Event is a notification from a control socket to the invoking layer.
type Event struct {
	Timestamp time.Time
	Error     error
	Session   string // session id
	Path      string // remote directory or file
	Local     string // local file for transfers
	Checksum  string // BLAKE3 digest of a downloaded file
	Size      int64  // bytes so far or total
	Type      Type
	Download  bool
}
