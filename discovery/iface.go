package discovery

import (
	"fmt"
	"net"

	"lanrtc/common"
)

// BroadcastAddress returns the IPv4 broadcast address of the first up,
// non-loopback interface that has one.
func BroadcastAddress() (net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("%w: list interfaces: %v", common.ErrNetworkUnavailable, err)
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagBroadcast == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if bcast := broadcastOf(ipnet); bcast != nil {
				return bcast, nil
			}
		}
	}

	return nil, fmt.Errorf("%w: no broadcast-capable interface", common.ErrNetworkUnavailable)
}

// broadcastOf computes ip | ^mask for an IPv4 network, or nil.
func broadcastOf(ipnet *net.IPNet) net.IP {
	ip4 := ipnet.IP.To4()
	if ip4 == nil || ip4.IsLoopback() {
		return nil
	}
	mask := ipnet.Mask
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	if len(mask) != net.IPv4len {
		return nil
	}
	bcast := make(net.IP, net.IPv4len)
	for i := range ip4 {
		bcast[i] = ip4[i] | ^mask[i]
	}
	return bcast
}
