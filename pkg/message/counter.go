package message

import "sync"

// RequestCounter hands out request indexes for outgoing requests.
// Values run 1, 2, ..., 0xFFFF and wrap back to 1; 0 is never produced
// because it means "unset" on the wire. It is safe for concurrent use.
type RequestCounter struct {
	value uint16
	mu    sync.Mutex
}

// NewRequestCounter creates a counter whose first value is 1.
func NewRequestCounter() *RequestCounter {
	return &RequestCounter{}
}

// NewRequestCounterWithValue creates a counter whose last handed out value
// is last. The next call to Next returns last+1, skipping 0.
func NewRequestCounterWithValue(last uint16) *RequestCounter {
	return &RequestCounter{value: last}
}

// Next returns the next request index.
func (c *RequestCounter) Next() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.value++
	if c.value == 0 {
		c.value = 1
	}
	return c.value
}

// Current returns the last value handed out, or 0 if none has been.
func (c *RequestCounter) Current() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}
