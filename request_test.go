package authlink_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/goliatone/go-authlink"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{header: "Bearer abc.def.ghi", token: "abc.def.ghi", ok: true},
		{header: "bearer   abc", token: "abc", ok: true},
		{header: "Bearer ", ok: false},
		{header: "Basic dXNlcjpwYXNz", ok: false},
		{header: "abc.def.ghi", ok: false},
		{header: "", ok: false},
	}

	for _, tt := range tests {
		token, ok := authlink.BearerToken(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.token, token, tt.header)
	}
}

func TestFirstToken(t *testing.T) {
	token, ok := authlink.FirstToken("Bearer from-header", "from-query")
	assert.True(t, ok)
	assert.Equal(t, "from-header", token)

	token, ok = authlink.FirstToken("", "", " from-query ", "from-cookie")
	assert.True(t, ok)
	assert.Equal(t, "from-query", token)

	_, ok = authlink.FirstToken("Basic x", "", "  ")
	assert.False(t, ok)
}

func TestRemoteAddress(t *testing.T) {
	addr := authlink.ParseRemoteAddress("192.0.2.1:8080")
	assert.Equal(t, authlink.RemoteAddress{IP: "192.0.2.1", Port: "8080"}, addr)
	assert.Equal(t, "192.0.2.1:8080", addr.String())

	v6 := authlink.ParseRemoteAddress("[2001:db8::1]:443")
	assert.Equal(t, "2001:db8::1", v6.IP)
	assert.Equal(t, "[2001:db8::1]:443", v6.String())

	bare := authlink.ParseRemoteAddress("10.0.0.1")
	assert.Equal(t, authlink.RemoteAddress{IP: "10.0.0.1"}, bare)
	assert.Equal(t, "10.0.0.1", bare.String())
}
