package authlink

import (
	"context"
	"net"
	"strings"
)

// AccessTokenKey is the header, query parameter and cookie name a token may
// be sent under when no Authorization header is present.
const AccessTokenKey = "access_token"

// RemoteAddress is the transport address of the caller.
type RemoteAddress struct {
	IP   string `json:"ip"`
	Port string `json:"port"`
}

// String renders the address as host:port, or just the host when the port
// is unknown.
func (r RemoteAddress) String() string {
	if r.Port == "" {
		return r.IP
	}
	return net.JoinHostPort(r.IP, r.Port)
}

// ParseRemoteAddress splits a host:port pair. Input without a port is kept
// as the IP.
func ParseRemoteAddress(hostport string) RemoteAddress {
	host, port, err := net.SplitHostPort(strings.TrimSpace(hostport))
	if err != nil {
		return RemoteAddress{IP: strings.TrimSpace(hostport)}
	}
	return RemoteAddress{IP: host, Port: port}
}

// Request is the request-scoped view the token lifecycle needs from the
// transport layer.
type Request interface {
	// AccessToken returns the raw bearer token, false when none was sent.
	AccessToken() (string, bool)
	RemoteAddress() RemoteAddress
	// BindSessionUser stores the validated user in the request session.
	BindSessionUser(ctx context.Context, user *User) error
}

// SessionRequest exposes the user already authenticated in the request
// session, used by the token issuance endpoint.
type SessionRequest interface {
	SessionUser(ctx context.Context) (*User, bool)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

// FirstToken returns the first non-empty candidate. Adapters pass the
// Authorization header first, then the access_token header, query parameter
// and cookie.
func FirstToken(authorization string, candidates ...string) (string, bool) {
	if token, ok := BearerToken(authorization); ok {
		return token, true
	}
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c, true
		}
	}
	return "", false
}
