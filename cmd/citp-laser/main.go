// citp-laser is a CITP laser peer.
//
// The run command streams laser feeds to a visualiser: it waits for a peer
// announcing a TCP port on the discovery group, connects, answers the
// peer's requests and then multicasts one frame per feed every tick.
//
// The monitor command plays the visualiser: it announces a TCP port,
// accepts streaming peers and reports what they send.
//
// Usage:
//
//	citp-laser run [--config citp.toml] [--name "Laser"] [--feed left --feed right]
//	citp-laser monitor [--listen :6436] [--advertise 192.168.1.20]
//
// Both commands serve Prometheus metrics on /metrics and a JSON summary on
// /status when --metrics-addr is set.
package main

func main() {
	Execute()
}
