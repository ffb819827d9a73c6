package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net"

	"golang.org/x/net/ipv6"
)

const multicastPort = 10001

// startMulticast publishes every ranger sample as JSON to an IPv6
// multicast group on all interfaces with a global v6 address, so lab
// dashboards can watch the lift without holding an HTTP connection.
func startMulticast(groupIPv6 string, events <-chan Event) {
	group := net.ParseIP(groupIPv6)
	if group == nil || !group.IsMulticast() {
		log.Fatalf("not a multicast IPv6 group: %s", groupIPv6)
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		fmt.Printf("localAddresses: %v\n", err)
		return
	}

	var conns []*ipv6.PacketConn
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			fmt.Printf("localAddresses: %v\n", err)
			continue
		}

		inter, err := net.InterfaceByName(iface.Name)
		if err != nil {
			fmt.Println(err)
			continue
		}

		for _, a := range addrs {
			addr, ok := a.(*net.IPNet)
			if !ok || addr.IP.To4() != nil {
				continue
			}

			c, err := net.ListenUDP("udp6", &net.UDPAddr{IP: addr.IP, Port: multicastPort, Zone: iface.Name})
			if err != nil {
				fmt.Println(err)
				continue
			}

			p := ipv6.NewPacketConn(c)
			if err := p.JoinGroup(inter, &net.UDPAddr{IP: group}); err != nil {
				fmt.Println(err)
				continue
			}

			fmt.Printf("multicasting samples on %s via %s\n", addr, iface.Name)
			conns = append(conns, p)
		}
	}

	dst := &net.UDPAddr{IP: group, Port: multicastPort}
	for event := range events {
		sample, ok := event.data.(SampleEvent)
		if !ok {
			continue
		}

		b, err := json.Marshal(sample)
		if err != nil {
			fmt.Println(err)
			continue
		}

		for _, p := range conns {
			if _, err := p.WriteTo(b, nil, dst); err != nil {
				fmt.Println(err)
			}
		}
	}
}
