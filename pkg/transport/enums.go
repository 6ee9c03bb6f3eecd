package transport

// TransportType tells which CITP socket a message came from. Discovery and
// laser frames use the multicast group, everything else a TCP session.
type TransportType int

const (
	TransportTypeUnknown TransportType = iota
	TransportTypeMulticast
	TransportTypeTCP
)

var transportTypeNames = [...]string{
	TransportTypeUnknown:   "Unknown",
	TransportTypeMulticast: "Multicast",
	TransportTypeTCP:       "TCP",
}

func (t TransportType) String() string {
	if t.IsValid() {
		return transportTypeNames[t]
	}
	return transportTypeNames[TransportTypeUnknown]
}

// IsValid reports whether t names a real socket kind.
func (t TransportType) IsValid() bool {
	return t == TransportTypeMulticast || t == TransportTypeTCP
}
