// internal/channel/handshake.go
package channel

import (
	"fmt"
	"net/url"
)

// Handshake selects how the credential is delivered when dialing.
type Handshake int

const (
	// HandshakeBearer sends ?authorization=Bearer <credential>.
	HandshakeBearer Handshake = iota
	// HandshakeToken sends ?token=<credential>.
	HandshakeToken
)

// ParseHandshake maps "bearer" or "token" to a Handshake. Empty selects HandshakeBearer.
func ParseHandshake(s string) (Handshake, error) {
	switch s {
	case "", "bearer":
		return HandshakeBearer, nil
	case "token":
		return HandshakeToken, nil
	default:
		return HandshakeBearer, fmt.Errorf("unknown handshake %q (want bearer or token)", s)
	}
}

func (h Handshake) String() string {
	if h == HandshakeToken {
		return "token"
	}
	return "bearer"
}

// buildDialURL attaches credential to endpoint as a query parameter. Existing
// query parameters on endpoint are preserved.
func buildDialURL(endpoint, credential string, h Handshake) (string, error) {
	if credential == "" {
		return "", fmt.Errorf("%w: empty credential", ErrInvalidConfig)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: parse endpoint: %v", ErrInvalidConfig, err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return "", fmt.Errorf("%w: unsupported endpoint scheme %q", ErrInvalidConfig, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: endpoint has no host", ErrInvalidConfig)
	}

	q := u.Query()
	switch h {
	case HandshakeToken:
		q.Set("token", credential)
	default:
		q.Set("authorization", "Bearer "+credential)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
