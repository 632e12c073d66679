package framing_test

import (
	"bytes"
	"io"
	"math/rand"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quayside/sluice/framing"
)

func TestRoundTripBuffer(t *testing.T) {
	payloads := [][]byte{
		[]byte("hello"),
		{},
		[]byte("a"),
		bytes.Repeat([]byte{0x00}, 300),
		bytes.Repeat([]byte("payload"), 10000),
	}

	var wire bytes.Buffer
	fw := framing.NewWriter(&wire)
	for _, p := range payloads {
		require.NoError(t, fw.WriteChunk(p))
	}

	fr := framing.NewReader(&wire)
	for i, want := range payloads {
		got, err := fr.ReadChunk()
		require.NoError(t, err, "frame %d", i)
		assert.True(t, bytes.Equal(want, got), "frame %d", i)
	}

	_, err := fr.ReadChunk()
	assert.Equal(t, io.EOF, err)
}

func TestWireFormat(t *testing.T) {
	var wire bytes.Buffer
	fw := framing.NewWriter(&wire)
	require.NoError(t, fw.WriteChunk([]byte("0123456789abcdef")))
	assert.Equal(t, "10\r\n0123456789abcdef\r\n", wire.String())

	wire.Reset()
	require.NoError(t, fw.WriteChunk(nil))
	assert.Equal(t, "0\r\n\r\n", wire.String())
}

func TestRoundTripPipe(t *testing.T) {
	// net.Pipe has no buffering at all: every frame byte must be written
	// and read in lockstep, which catches any read-ahead past a frame
	// boundary.
	client, server := net.Pipe()

	payloads := make([][]byte, 20)
	r := rand.New(rand.NewSource(0xca11))
	for i := range payloads {
		payloads[i] = make([]byte, r.Intn(8192))
		r.Read(payloads[i])
	}

	writeErr := make(chan error, 1)
	go func() {
		fw := framing.NewWriter(client)
		for _, p := range payloads {
			if err := fw.WriteChunk(p); err != nil {
				writeErr <- err
				return
			}
		}
		writeErr <- client.Close()
	}()

	fr := framing.NewReader(server)
	for i, want := range payloads {
		got, err := fr.ReadChunk()
		require.NoError(t, err, "frame %d", i)
		require.True(t, bytes.Equal(want, got), "frame %d", i)
	}
	_, err := fr.ReadChunk()
	assert.Equal(t, io.EOF, err)
	assert.NoError(t, <-writeErr)
}

func TestReadRejectsMalformedHeader(t *testing.T) {
	cases := []struct {
		name string
		wire string
	}{
		{"not hex", "zz\r\npayload\r\n"},
		{"bare LF", "5\npayload\r\n"},
		{"empty size", "\r\npayload\r\n"},
		{"unterminated", "ffffffffffffffffffff"},
		{"missing trailer", "3\r\nabcXY"},
		{"wrong trailer", "3\r\nabcXY\r\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fr := framing.NewReader(bytes.NewReader([]byte(tc.wire)))
			_, err := fr.ReadChunk()
			assert.Error(t, err)
			assert.NotEqual(t, io.EOF, err)
		})
	}
}

func TestReadRejectsOversizedFrame(t *testing.T) {
	fr := framing.NewReader(bytes.NewReader([]byte("ffffffffff\r\n")))
	_, err := fr.ReadChunk()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds limit")
}

func TestReadTruncatedPayload(t *testing.T) {
	fr := framing.NewReader(bytes.NewReader([]byte("100\r\nonly a few bytes")))
	_, err := fr.ReadChunk()
	assert.Error(t, err)
}
