// Package ws implements the WebSocket server side of the host from scratch:
// RFC 6455 framing, the HTTP upgrade handshake, and a polling dispatch loop
// over a plain TCP listener.
//
// The codec decodes one data frame per read. Frames split across reads are
// not reassembled and control frames are not interpreted beyond close
// detection; application messages are expected to fit in a single text
// frame.
package ws

// Frame opcodes as defined in RFC 6455 Section 5.2.
const (
	OpcodeContinuation byte = 0x0
	OpcodeText         byte = 0x1
	OpcodeBinary       byte = 0x2
	OpcodeClose        byte = 0x8
	OpcodePing         byte = 0x9
	OpcodePong         byte = 0xA
)

const (
	finBit  = 0x80
	maskBit = 0x80
)

// Message is one decoded data frame.
type Message struct {
	Opcode  byte
	Payload []byte
}

// DecodeFrame decodes a single WebSocket data frame from buf. It returns
// false when buf does not hold a complete text or binary frame: control
// frames, continuation frames and truncated buffers are all rejected the
// same way, and the caller treats the read as noise.
//
// Payload lengths above 4 GiB are not supported; the top four bytes of a
// 64-bit extended length are assumed zero.
func DecodeFrame(buf []byte) (Message, bool) {
	if len(buf) < 2 {
		return Message{}, false
	}

	opcode := buf[0] & 0x0F
	if opcode != OpcodeText && opcode != OpcodeBinary {
		return Message{}, false
	}

	masked := buf[1]&maskBit != 0
	payloadLen := int(buf[1] & 0x7F)
	offset := 2

	switch payloadLen {
	case 126:
		if len(buf) < 4 {
			return Message{}, false
		}
		payloadLen = int(buf[2])<<8 | int(buf[3])
		offset = 4
	case 127:
		if len(buf) < 10 {
			return Message{}, false
		}
		payloadLen = int(buf[6])<<24 | int(buf[7])<<16 | int(buf[8])<<8 | int(buf[9])
		offset = 10
	}

	var maskKey []byte
	if masked {
		if len(buf) < offset+4 {
			return Message{}, false
		}
		maskKey = buf[offset : offset+4]
		offset += 4
	}

	if len(buf) < offset+payloadLen {
		return Message{}, false
	}

	payload := make([]byte, payloadLen)
	copy(payload, buf[offset:offset+payloadLen])
	if masked {
		for i := range payload {
			payload[i] ^= maskKey[i%4]
		}
	}

	return Message{Opcode: opcode, Payload: payload}, true
}

// EncodeText encodes payload as a single unmasked FIN text frame. Server to
// client frames are sent unmasked per RFC 6455.
func EncodeText(payload []byte) []byte {
	length := len(payload)

	var frame []byte
	switch {
	case length < 126:
		frame = make([]byte, 0, 2+length)
		frame = append(frame, finBit|OpcodeText, byte(length))
	case length < 65536:
		frame = make([]byte, 0, 4+length)
		frame = append(frame, finBit|OpcodeText, 126, byte(length>>8), byte(length))
	default:
		frame = make([]byte, 0, 10+length)
		frame = append(frame, finBit|OpcodeText, 127)
		for i := 7; i >= 0; i-- {
			frame = append(frame, byte(length>>(i*8)))
		}
	}

	return append(frame, payload...)
}

// isCloseFrame reports whether buf starts a close frame. The dispatch loop
// uses it to distinguish an orderly peer close from decoder noise.
func isCloseFrame(buf []byte) bool {
	return len(buf) >= 1 && buf[0]&0x0F == OpcodeClose
}
