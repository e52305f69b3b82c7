package observations

import (
	"github.com/probewatch/probewatch/measurement"
)

// eventsUntilConnect returns the prefix of the timeline up to (excluding)
// the next connect event.
func eventsUntilConnect(events []measurement.NetworkEvent) []measurement.NetworkEvent {
	var out []measurement.NetworkEvent
	for _, ne := range events {
		if ne.Operation == "connect" {
			break
		}
		out = append(out, ne)
	}
	return out
}

// FindTLSHandshakeEvents correlates a TLS handshake with its slice of the
// generic network-event timeline. Every connect event resets the current
// window; the handshake is identified by a tls_handshake_done event carrying
// the same relative timestamp. The correlated window extends until the next
// connect. A nil result means no correlation was possible.
func FindTLSHandshakeEvents(handshake measurement.TLSHandshake, events []measurement.NetworkEvent) []measurement.NetworkEvent {
	var window []measurement.NetworkEvent
	for idx, ne := range events {
		if ne.Operation == "connect" {
			window = nil
		}
		window = append(window, ne)
		if ne.Operation == "tls_handshake_done" && ne.T == handshake.T {
			return append(window, eventsUntilConnect(events[idx+1:])...)
		}
	}
	return nil
}
