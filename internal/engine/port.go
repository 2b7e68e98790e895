package engine

import (
	"fmt"
	"math/rand/v2"
	"net"
	"strconv"
)

const (
	portMin      = 20000
	portMax      = 60000
	maxPortPicks = 100
)

func randomPort() int {
	return portMin + rand.IntN(portMax-portMin)
}

// freePort returns the first port from pick that can be bound on the
// loopback interface. The probe listener is closed before returning, so the
// engine may still lose a race for the port; the launch retry covers that.
func freePort(pick func() int) (int, error) {
	for range maxPortPicks {
		port := pick()
		ln, err := net.Listen("tcp", net.JoinHostPort(LoopbackHost, strconv.Itoa(port)))
		if err != nil {
			continue
		}
		if err := ln.Close(); err != nil {
			continue
		}
		return port, nil
	}
	return 0, fmt.Errorf("no free port in [%d, %d) after %d picks", portMin, portMax, maxPortPicks)
}
