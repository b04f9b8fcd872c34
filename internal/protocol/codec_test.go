package protocol_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/bucketctl/internal/protocol"
)

func TestKindWireBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind  protocol.Kind
		want  byte
		lines int
	}{
		{kind: protocol.Reply, want: '0', lines: 1},
		{kind: protocol.Done, want: '1', lines: 1},
		{kind: protocol.Error, want: '2', lines: 1},
		{kind: protocol.Verbose, want: '3', lines: 1},
		{kind: protocol.Info, want: '4', lines: 1},
		{kind: protocol.Status, want: '5', lines: 1},
		{kind: protocol.Recv, want: '6', lines: 0},
		{kind: protocol.Send, want: '7', lines: 0},
		{kind: protocol.ListEntry, want: '8', lines: 3},
		{kind: protocol.UsedQuotaRecv, want: '9', lines: 0},
		{kind: protocol.UsedQuotaSend, want: ':', lines: 0},
		{kind: protocol.Transfer, want: ';', lines: 1},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.kind.Byte())
			assert.Equal(t, tt.lines, tt.kind.Lines())
		})
	}
}

func TestKindStringUnknown(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Unknown", protocol.Kind(99).String())
	assert.False(t, protocol.Kind(99).Valid())
}

func TestDecodeSequence(t *testing.T) {
	t.Parallel()

	input := "0bucketd started, protocol_version=1\n" +
		"6\n" +
		"8bucketA\n-1\nid1\n" +
		";100\r\n" +
		"1\n"
	dec := protocol.NewDecoder(strings.NewReader(input))

	msg, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, protocol.Reply, msg.Kind)
	assert.Equal(t, protocol.Greeting(protocol.ProtocolVersion), msg.Text[0])

	msg, err = dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, protocol.Recv, msg.Kind)

	msg, err = dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, protocol.ListEntry, msg.Kind)
	assert.Equal(t, [3]string{"bucketA", "-1", "id1"}, msg.Text)

	msg, err = dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, protocol.Transfer, msg.Kind)
	assert.Equal(t, "100", msg.Text[0])

	msg, err = dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, protocol.Done, msg.Kind)
	assert.Empty(t, msg.Text[0])

	_, err = dec.Decode()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecodeUnknownKind(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"x\n", "<foo\n", "/bar\n"} {
		dec := protocol.NewDecoder(strings.NewReader(input))
		_, err := dec.Decode()
		require.ErrorIs(t, err, protocol.ErrUnknownKind, "input %q", input)
	}
}

func TestDecodeTruncatedMessage(t *testing.T) {
	t.Parallel()

	dec := protocol.NewDecoder(strings.NewReader("8name\n12\n"))
	_, err := dec.Decode()
	require.ErrorIs(t, err, protocol.ErrUnexpectedEOF)
}

func TestDecodeLongLineTruncated(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", protocol.MaxLineSize*3)
	dec := protocol.NewDecoder(strings.NewReader("3" + long + "\n0next\n"))

	msg, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, protocol.Verbose, msg.Kind)
	assert.Len(t, msg.Text[0], protocol.MaxLineSize)

	msg, err = dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, protocol.Reply, msg.Kind)
	assert.Equal(t, "next", msg.Text[0])
}

func TestEncodeDecodeListEntry(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	in := protocol.Message{Kind: protocol.ListEntry, Text: [3]string{"file.txt", "42", "abc"}}
	require.NoError(t, protocol.Encode(&buf, in))
	require.NoError(t, protocol.Encode(&buf, protocol.Message{Kind: protocol.UsedQuotaSend}))
	assert.Equal(t, "8file.txt\n42\nabc\n:\n", buf.String())

	dec := protocol.NewDecoder(&buf)
	out, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, in, out)

	out, err = dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, protocol.UsedQuotaSend, out.Kind)
}

func TestEncodeRejectsLineBreak(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := protocol.Encode(&buf, protocol.Message{Kind: protocol.Reply, Text: [3]string{"a\nb"}})
	require.ErrorIs(t, err, protocol.ErrLineBreak)
	assert.Zero(t, buf.Len())
}

func TestQuote(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "plain", want: `"plain"`},
		{in: "with space", want: `"with space"`},
		{in: `a"b`, want: `"a""b"`},
		{in: "", want: `""`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, protocol.Quote(tt.in))
		assert.Equal(t, tt.in, protocol.Unquote(tt.want))
	}
}

func TestCheckLine(t *testing.T) {
	t.Parallel()

	require.NoError(t, protocol.CheckLine(`get b f "/tmp/x"`))
	require.ErrorIs(t, protocol.CheckLine("pass a\nrm b c"), protocol.ErrLineBreak)
	require.ErrorIs(t, protocol.CheckLine("pass a\r"), protocol.ErrLineBreak)
}
