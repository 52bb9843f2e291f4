// Package netinfo describes the host a relay node runs on.
package netinfo

import (
	"net"
	"os"
)

// Hostname returns the kernel host name, or "unknown" if it cannot be read.
func Hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "unknown"
	}
	return name
}

// IPv4Addresses lists every IPv4 interface address as "<iface>/<ip>".
func IPv4Addresses() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	list := []string{}
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		list = append(list, formatIPv4(iface.Name, addrs)...)
	}
	return list, nil
}

func formatIPv4(name string, addrs []net.Addr) []string {
	var out []string
	for _, addr := range addrs {
		var ip net.IP
		switch v := addr.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip4 := ip.To4(); ip4 != nil {
			out = append(out, name+"/"+ip4.String())
		}
	}
	return out
}
