// Package wsframe implements the slice of RFC 6455 framing the bridge
// actually speaks: decoding masked client-to-server frames out of a byte
// buffer that may hold partial or multiple frames, and encoding unmasked
// server-to-client text frames. One text frame carries exactly one
// JSON-RPC message; fragmentation across frames is not part of the
// protocol this server accepts.
package wsframe

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
)

// WebSocket opcodes (RFC 6455 section 5.2)
const (
	OpcodeContinuation = 0x0
	OpcodeText         = 0x1
	OpcodeBinary       = 0x2
	OpcodeClose        = 0x8
	OpcodePing         = 0x9
	OpcodePong         = 0xA
)

const (
	finBit  = 0x80
	maskBit = 0x80

	// websocketGUID is the fixed key-derivation string from RFC 6455
	// section 1.3, appended to the client key before hashing.
	websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
)

// Decode parses as many complete frames as buf contains and returns the
// text payloads in wire order plus the bytes that did not yet form a
// complete frame. Non-text frames are consumed without being surfaced so
// the cursor stays aligned; a frame whose declared payload has not fully
// arrived is returned intact, from its first header byte, as the remainder.
func Decode(buf []byte) ([]string, []byte) {
	var payloads []string
	offset := 0

	for {
		start := offset

		// Need the two fixed header bytes before anything can be read.
		if len(buf)-offset < 2 {
			return payloads, buf[start:]
		}

		opcode := buf[offset] & 0x0F
		masked := buf[offset+1]&maskBit != 0
		payloadLen := uint64(buf[offset+1] & 0x7F)
		offset += 2

		switch payloadLen {
		case 126:
			if len(buf)-offset < 2 {
				return payloads, buf[start:]
			}
			payloadLen = uint64(binary.BigEndian.Uint16(buf[offset:]))
			offset += 2
		case 127:
			if len(buf)-offset < 8 {
				return payloads, buf[start:]
			}
			payloadLen = binary.BigEndian.Uint64(buf[offset:])
			offset += 8
		}

		var maskKey [4]byte
		if masked {
			if len(buf)-offset < 4 {
				return payloads, buf[start:]
			}
			copy(maskKey[:], buf[offset:offset+4])
			offset += 4
		}

		if uint64(len(buf)-offset) < payloadLen {
			// Partial payload: hand the whole frame back for the next read.
			return payloads, buf[start:]
		}

		if opcode == OpcodeText {
			payload := make([]byte, payloadLen)
			copy(payload, buf[offset:offset+int(payloadLen)])
			if masked {
				for i := range payload {
					payload[i] ^= maskKey[i%4]
				}
			}
			payloads = append(payloads, string(payload))
		}

		offset += int(payloadLen)

		if offset == len(buf) {
			return payloads, nil
		}
	}
}

// Encode builds a final, unmasked text frame around text. Server-to-client
// frames are never masked (RFC 6455 section 5.1).
func Encode(text string) []byte {
	payload := []byte(text)
	payloadLen := len(payload)

	var header []byte
	switch {
	case payloadLen < 126:
		header = []byte{finBit | OpcodeText, byte(payloadLen)}
	case payloadLen < 1<<16:
		header = make([]byte, 4)
		header[0] = finBit | OpcodeText
		header[1] = 126
		binary.BigEndian.PutUint16(header[2:], uint16(payloadLen))
	default:
		header = make([]byte, 10)
		header[0] = finBit | OpcodeText
		header[1] = 127
		binary.BigEndian.PutUint64(header[2:], uint64(payloadLen))
	}

	frame := make([]byte, 0, len(header)+payloadLen)
	frame = append(frame, header...)
	frame = append(frame, payload...)
	return frame
}

// AcceptKey computes the Sec-WebSocket-Accept value for a client's
// Sec-WebSocket-Key during the opening handshake.
func AcceptKey(clientKey string) string {
	digest := sha1.Sum([]byte(clientKey + websocketGUID))
	return base64.StdEncoding.EncodeToString(digest[:])
}
