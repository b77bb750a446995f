package ws

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	// boundary lengths across the 7/16/64-bit prefix forms
	lengths := []int{0, 1, 125, 126, 127, 65535, 65536}

	for _, n := range lengths {
		payload := strings.Repeat("a", n)
		frame := EncodeText([]byte(payload))

		msg, ok := DecodeFrame(frame)
		require.True(t, ok, "length %d", n)
		assert.Equal(t, OpcodeText, msg.Opcode)
		assert.Equal(t, payload, string(msg.Payload), "length %d", n)
	}
}

func TestEncodeLengthPrefixForms(t *testing.T) {
	tests := []struct {
		length     int
		wantByte1  byte
		wantHeader int
	}{
		{0, 0, 2},
		{125, 125, 2},
		{126, 126, 4},
		{65535, 126, 4},
		{65536, 127, 10},
	}

	for _, tt := range tests {
		frame := EncodeText([]byte(strings.Repeat("x", tt.length)))
		assert.Equal(t, byte(0x81), frame[0], "length %d", tt.length)
		assert.Equal(t, tt.wantByte1, frame[1]&0x7F, "length %d", tt.length)
		assert.Equal(t, tt.wantHeader+tt.length, len(frame), "length %d", tt.length)
		// server frames are unmasked
		assert.Zero(t, frame[1]&0x80, "length %d", tt.length)
	}
}

func TestDecodeMaskedFrame(t *testing.T) {
	payload := []byte(`{"action":"PING"}`)
	maskKey := []byte{0x1f, 0x2e, 0x3d, 0x4c}

	frame := []byte{0x81, 0x80 | byte(len(payload))}
	frame = append(frame, maskKey...)
	for i, b := range payload {
		frame = append(frame, b^maskKey[i%4])
	}

	msg, ok := DecodeFrame(frame)
	require.True(t, ok)
	assert.Equal(t, payload, msg.Payload)
}

func TestDecodeMaskedExtendedLength(t *testing.T) {
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte(i)
	}
	maskKey := []byte{0xaa, 0xbb, 0xcc, 0xdd}

	frame := []byte{0x82, 0x80 | 126, byte(300 >> 8), byte(300 & 0xff)}
	frame = append(frame, maskKey...)
	for i, b := range payload {
		frame = append(frame, b^maskKey[i%4])
	}

	msg, ok := DecodeFrame(frame)
	require.True(t, ok)
	assert.Equal(t, OpcodeBinary, msg.Opcode)
	assert.Equal(t, payload, msg.Payload)
}

func TestDecodeRejectsNonDataOpcodes(t *testing.T) {
	tests := []struct {
		name   string
		opcode byte
	}{
		{"continuation", OpcodeContinuation},
		{"close", OpcodeClose},
		{"ping", OpcodePing},
		{"pong", OpcodePong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := []byte{0x80 | tt.opcode, 0x00}
			_, ok := DecodeFrame(frame)
			assert.False(t, ok)
		})
	}
}

func TestDecodeTruncatedBuffers(t *testing.T) {
	full := EncodeText([]byte("hello, world"))

	for cut := 0; cut < len(full); cut++ {
		_, ok := DecodeFrame(full[:cut])
		assert.False(t, ok, "cut at %d", cut)
	}

	// truncated extended-length headers
	_, ok := DecodeFrame([]byte{0x81, 126, 0x01})
	assert.False(t, ok)
	_, ok = DecodeFrame([]byte{0x81, 127, 0, 0, 0, 0})
	assert.False(t, ok)

	// masked frame missing part of its mask key
	_, ok = DecodeFrame([]byte{0x81, 0x85, 0x01, 0x02})
	assert.False(t, ok)
}

func TestIsCloseFrame(t *testing.T) {
	assert.True(t, isCloseFrame([]byte{0x88, 0x00}))
	assert.False(t, isCloseFrame([]byte{0x81, 0x00}))
	assert.False(t, isCloseFrame(nil))
}
