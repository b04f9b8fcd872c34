package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// ProtocolVersion is the backend protocol revision this client speaks.
const ProtocolVersion = 1

// MaxLineSize caps a single payload line. Longer lines are truncated.
const MaxLineSize = 4096

// Kind identifies the type of a backend output message. On the wire a
// message starts with the single byte '0'+Kind.
type Kind byte

const (
	Reply Kind = iota
	Done
	Error
	Verbose
	Info
	Status
	Recv
	Send
	ListEntry
	UsedQuotaRecv
	UsedQuotaSend
	Transfer

	numKinds
)

var kindNames = [...]string{
	Reply:         "Reply",
	Done:          "Done",
	Error:         "Error",
	Verbose:       "Verbose",
	Info:          "Info",
	Status:        "Status",
	Recv:          "Recv",
	Send:          "Send",
	ListEntry:     "ListEntry",
	UsedQuotaRecv: "UsedQuotaRecv",
	UsedQuotaSend: "UsedQuotaSend",
	Transfer:      "Transfer",
}

// kindLines is the number of payload lines that follow the kind byte.
var kindLines = [...]int{
	Reply:         1,
	Done:          1,
	Error:         1,
	Verbose:       1,
	Info:          1,
	Status:        1,
	Recv:          0,
	Send:          0,
	ListEntry:     3,
	UsedQuotaRecv: 0,
	UsedQuotaSend: 0,
	Transfer:      1,
}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return "Unknown"
}

// Lines returns the payload line count for k.
func (k Kind) Lines() int {
	if k < numKinds {
		return kindLines[k]
	}
	return 0
}

// Valid reports whether k is a known message kind.
func (k Kind) Valid() bool { return k < numKinds }

// Byte returns the wire representation of k.
func (k Kind) Byte() byte { return '0' + byte(k) }

// Message is one decoded backend output message.
type Message struct {
	Text [3]string
	Kind Kind
}

// Sentinel errors.
var (
	ErrLineBreak     = errors.New("command contains a line break")
	ErrUnknownKind   = errors.New("unknown message kind")
	ErrUnexpectedEOF = errors.New("unexpected end of backend output")
)

// Greeting returns the first reply a backend speaking version emits.
func Greeting(version int) string {
	return fmt.Sprintf("bucketd started, protocol_version=%d", version)
}

// Quote wraps s in double quotes, doubling any embedded quote.
func Quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Unquote reverses Quote. Text without surrounding quotes is returned as is.
func Unquote(s string) string {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}
	return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
}

// CheckLine rejects command text that would split into several lines on
// the backend's stdin.
func CheckLine(s string) error {
	if strings.ContainsAny(s, "\r\n") {
		return ErrLineBreak
	}
	return nil
}
