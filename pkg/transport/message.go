package transport

// ReceivedMessage is one datagram from the multicast group or one framed
// message from a TCP connection. Data holds the complete CITP message,
// envelope included; decoding is left to the caller.
type ReceivedMessage struct {
	Data     []byte
	PeerAddr PeerAddress
}

// MessageHandler is called for each received message, from the transport's
// read goroutine. Implementations should hand work off quickly.
type MessageHandler func(msg *ReceivedMessage)
