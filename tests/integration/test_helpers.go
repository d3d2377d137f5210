// Package integration provides end-to-end tests for the stubd simulator.
package integration

import (
	"fmt"
	"net"
	"sync/atomic"
)

// Global port counter so parallel tests never collide on listeners.
var globalPortCounter uint32 = 30000

// getFreePort returns a unique port for testing, verified free where
// possible.
func getFreePort() int {
	for attempts := 0; attempts < 100; attempts++ {
		port := int(atomic.AddUint32(&globalPortCounter, 1))
		if isPortFree(port) {
			return port
		}
	}
	return int(atomic.AddUint32(&globalPortCounter, 1))
}

func isPortFree(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}
