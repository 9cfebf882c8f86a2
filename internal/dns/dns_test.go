package dns

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupIPLiteral(t *testing.T) {
	ip, err := Lookup(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", ip)

	ip, err = Lookup(context.Background(), "::1")
	require.NoError(t, err)
	assert.Equal(t, "::1", ip)
}

func TestLookupLocalhost(t *testing.T) {
	ip, err := Lookup(context.Background(), "localhost")
	require.NoError(t, err)
	assert.True(t, net.ParseIP(ip).IsLoopback(), ip)
}

func TestPickIPPrefersIPv4(t *testing.T) {
	ip, err := pickIP([]string{"::1", "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", ip)

	ip, err = pickIP([]string{"::1"})
	require.NoError(t, err)
	assert.Equal(t, "::1", ip)

	_, err = pickIP(nil)
	assert.Error(t, err)
}

func TestRemoteRaceHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := remoteLookupWithRace(ctx, "example.invalid", []string{"192.0.2.1"})
	assert.Error(t, err)
}

func TestDialContextRejectsBadAddr(t *testing.T) {
	_, err := DialContext(context.Background(), "tcp", "no-port")
	assert.Error(t, err)
}

func TestTrimBrackets(t *testing.T) {
	assert.Equal(t, "2606:4700:4700::1111", trimBrackets("[2606:4700:4700::1111]"))
	assert.Equal(t, "1.1.1.1", trimBrackets("1.1.1.1"))
}
