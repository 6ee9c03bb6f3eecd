// Package messagetest provides helpers for testing layer message codecs.
package messagetest

import (
	"testing"

	"github.com/maxatome/go-testdeep/td"

	"github.com/backkem/citp/pkg/message"
)

// RoundTrip encodes p as a full message, checks that the payload and message
// sizes match the encoded length, decodes the bytes with a registry built by
// register, and checks the decoded payload deep-equals p. It returns the
// encoded bytes and the decoded message.
func RoundTrip(t testing.TB, register func(*message.Registry), p message.Payload) ([]byte, *message.Message) {
	t.Helper()

	m := message.New(p)
	data, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(data) != m.Size() {
		t.Errorf("len(Encode()) = %d, Size() = %d", len(data), m.Size())
	}
	headers := message.HeaderSize + p.Layer().Format.Size()
	if got := len(data) - headers; got != p.Size() {
		t.Errorf("%s/%s: encoded payload = %d bytes, Size() = %d", p.Layer(), p.ContentType(), got, p.Size())
	}

	reg := message.NewRegistry()
	register(reg)
	got, err := reg.Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	td.Cmp(t, got.Payload, p)
	td.Cmp(t, got.LayerHeader.ContentType, p.ContentType())
	return data, got
}

// Truncations decodes every strict prefix of the payload in data and
// checks that each one fails. data must be a full encoded message.
func Truncations(t testing.TB, register func(*message.Registry), data []byte) {
	t.Helper()

	reg := message.NewRegistry()
	register(reg)
	for n := message.HeaderSize; n < len(data); n++ {
		short := append([]byte(nil), data[:n]...)
		short[8], short[9], short[10], short[11] = byte(n), byte(n>>8), byte(n>>16), byte(n>>24)
		m, err := reg.Decode(short)
		if err == nil {
			if _, unknown := m.Payload.(*message.Unknown); unknown {
				continue
			}
			t.Errorf("Decode() of %d/%d bytes succeeded", n, len(data))
		}
	}
}
