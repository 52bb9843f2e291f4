package netinfo

import (
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatIPv4SkipsIPv6(t *testing.T) {
	addrs := []net.Addr{
		&net.IPNet{IP: net.ParseIP("10.0.0.5"), Mask: net.CIDRMask(24, 32)},
		&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
		&net.IPAddr{IP: net.ParseIP("192.168.1.2")},
	}

	assert.Equal(t, []string{"eth0/10.0.0.5", "eth0/192.168.1.2"}, formatIPv4("eth0", addrs))
}

func TestIPv4Addresses(t *testing.T) {
	list, err := IPv4Addresses()
	require.NoError(t, err)
	require.NotNil(t, list)
	for _, entry := range list {
		parts := strings.SplitN(entry, "/", 2)
		require.Len(t, parts, 2, entry)
		assert.NotNil(t, net.ParseIP(parts[1]).To4(), entry)
	}
}

func TestHostname(t *testing.T) {
	assert.NotEmpty(t, Hostname())
}
