// Package reply defines the completion codes returned by every step of a
// control socket operation.
package reply

import "strings"

// Outcome is the primary result of an operation step. It alone drives
// control flow; modifiers on Code only qualify it.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeContinue
	OutcomeWouldBlock
	OutcomeError
	OutcomeCriticalError
	OutcomeSyntaxError
	OutcomeNotSupported
	OutcomeInternalError
)

var outcomeNames = [...]string{
	OutcomeOK:            "OK",
	OutcomeContinue:      "Continue",
	OutcomeWouldBlock:    "WouldBlock",
	OutcomeError:         "Error",
	OutcomeCriticalError: "CriticalError",
	OutcomeSyntaxError:   "SyntaxError",
	OutcomeNotSupported:  "NotSupported",
	OutcomeInternalError: "InternalError",
}

func (o Outcome) String() string {
	if o >= 0 && int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "Unknown"
}

// Code is a completion code: one outcome plus the Disconnected and
// Canceled modifiers.
type Code struct {
	Outcome      Outcome
	Disconnected bool
	Canceled     bool
}

// Predefined codes.
var (
	OK            = Code{Outcome: OutcomeOK}
	Continue      = Code{Outcome: OutcomeContinue}
	WouldBlock    = Code{Outcome: OutcomeWouldBlock}
	Error         = Code{Outcome: OutcomeError}
	CriticalError = Code{Outcome: OutcomeCriticalError}
	SyntaxError   = Code{Outcome: OutcomeSyntaxError}
	NotSupported  = Code{Outcome: OutcomeNotSupported}
	InternalError = Code{Outcome: OutcomeInternalError}
	Disconnected  = Code{Outcome: OutcomeError, Disconnected: true}
	Canceled      = Code{Outcome: OutcomeError, Canceled: true}
)

// WithDisconnected returns c with the Disconnected modifier set.
func (c Code) WithDisconnected() Code {
	c.Disconnected = true
	return c
}

// WithCanceled returns c with the Canceled modifier set.
func (c Code) WithCanceled() Code {
	c.Canceled = true
	return c
}

// Merge returns c with any modifiers of other added.
func (c Code) Merge(other Code) Code {
	c.Disconnected = c.Disconnected || other.Disconnected
	c.Canceled = c.Canceled || other.Canceled
	return c
}

func (c Code) IsOK() bool         { return c.Outcome == OutcomeOK }
func (c Code) IsContinue() bool   { return c.Outcome == OutcomeContinue }
func (c Code) IsWouldBlock() bool { return c.Outcome == OutcomeWouldBlock }

// IsTerminal reports whether c ends the operation that produced it.
func (c Code) IsTerminal() bool {
	return !c.IsContinue() && !c.IsWouldBlock()
}

// IsFailure reports whether c is terminal and not OK.
func (c Code) IsFailure() bool {
	return c.IsTerminal() && !c.IsOK()
}

func (c Code) String() string {
	var b strings.Builder
	b.WriteString(c.Outcome.String())
	if c.Disconnected {
		b.WriteString("|Disconnected")
	}
	if c.Canceled {
		b.WriteString("|Canceled")
	}
	return b.String()
}

// Err returns nil for OK and a *CodeError for any failure.
func (c Code) Err() error {
	if !c.IsFailure() {
		return nil
	}
	return &CodeError{Code: c}
}

// CodeError adapts a failed Code to the error interface.
type CodeError struct {
	Code Code
}

func (e *CodeError) Error() string {
	return "command failed: " + e.Code.String()
}
