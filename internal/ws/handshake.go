package ws

import (
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"strings"
)

// Handshake errors.
var (
	ErrNotWebSocketRequest = errors.New("not a WebSocket upgrade request")
	ErrMissingSecKey       = errors.New("missing Sec-WebSocket-Key header")
)

// WebSocket GUID as defined in RFC 6455. Wire-format constant, not
// configuration.
const webSocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// Negotiate parses a raw HTTP upgrade request and produces the 101
// Switching Protocols response. The connection is not considered
// established until the caller has written the response.
func Negotiate(request string) (string, error) {
	if !strings.Contains(strings.ToLower(request), "upgrade: websocket") {
		return "", ErrNotWebSocketRequest
	}

	key := extractSecKey(request)
	if key == "" {
		return "", ErrMissingSecKey
	}

	var sb strings.Builder
	sb.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	sb.WriteString("Upgrade: websocket\r\n")
	sb.WriteString("Connection: Upgrade\r\n")
	sb.WriteString("Sec-WebSocket-Accept: " + acceptKey(key) + "\r\n")
	sb.WriteString("\r\n")

	return sb.String(), nil
}

// extractSecKey finds the Sec-WebSocket-Key header value, case-insensitive
// on the header name.
func extractSecKey(request string) string {
	for _, line := range strings.Split(request, "\n") {
		name, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(name), "Sec-WebSocket-Key") {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// acceptKey computes base64(SHA1(key + GUID)) per RFC 6455 Section 4.2.2.
func acceptKey(secKey string) string {
	hash := sha1.Sum([]byte(secKey + webSocketGUID))
	return base64.StdEncoding.EncodeToString(hash[:])
}
