package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Decoder frames backend stdout into Messages.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, MaxLineSize)}
}

// Decode reads the next message. It returns io.EOF when the stream ends
// cleanly between messages.
func (d *Decoder) Decode() (Message, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Message{}, io.EOF
		}
		return Message{}, fmt.Errorf("read message kind: %w", err)
	}

	if b < '0' || !Kind(b-'0').Valid() {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownKind, b)
	}

	msg := Message{Kind: Kind(b - '0')}
	n := msg.Kind.Lines()
	if n == 0 {
		// Zero-payload kinds are still newline terminated.
		if _, err := d.readLine(); err != nil {
			return Message{}, err
		}
		return msg, nil
	}

	for i := range n {
		line, err := d.readLine()
		if err != nil {
			return Message{}, err
		}
		msg.Text[i] = line
	}
	return msg, nil
}

// readLine reads up to the next '\n', dropping everything past
// MaxLineSize and a trailing '\r'.
func (d *Decoder) readLine() (string, error) {
	var buf []byte
	for {
		chunk, err := d.r.ReadSlice('\n')
		if len(buf) < MaxLineSize {
			room := MaxLineSize - len(buf)
			if len(chunk) > room {
				buf = append(buf, chunk[:room]...)
			} else {
				buf = append(buf, chunk...)
			}
		}
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return "", ErrUnexpectedEOF
		}
		return "", fmt.Errorf("read message line: %w", err)
	}

	buf = bytes.TrimSuffix(buf, []byte{'\n'})
	buf = bytes.TrimSuffix(buf, []byte{'\r'})
	return string(buf), nil
}

// Encode writes msg in wire form. Payload lines beyond the kind's count
// are ignored.
func Encode(w io.Writer, msg Message) error {
	if !msg.Kind.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownKind, msg.Kind)
	}

	var buf bytes.Buffer
	buf.WriteByte(msg.Kind.Byte())
	n := msg.Kind.Lines()
	if n == 0 {
		buf.WriteByte('\n')
	}
	for i := range n {
		if err := CheckLine(msg.Text[i]); err != nil {
			return err
		}
		buf.WriteString(msg.Text[i])
		buf.WriteByte('\n')
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}
