package spectro

// paramCache holds the last known value of every scalar channel per address.
// Each channel is consistently stored as either int or float, matching its
// declared type; the typed setters keep the two maps disjoint.
type paramCache struct {
	ints   []map[Channel]int
	floats []map[Channel]float64
}

func newParamCache(addresses int) *paramCache {
	c := &paramCache{
		ints:   make([]map[Channel]int, addresses),
		floats: make([]map[Channel]float64, addresses),
	}
	for i := 0; i < addresses; i++ {
		c.ints[i] = make(map[Channel]int)
		c.floats[i] = make(map[Channel]float64)
	}
	return c
}

func (c *paramCache) addresses() int {
	return len(c.ints)
}

func (c *paramCache) setInt(addr int, ch Channel, v int) {
	c.ints[addr][ch] = v
}

func (c *paramCache) setFloat(addr int, ch Channel, v float64) {
	c.floats[addr][ch] = v
}

func (c *paramCache) getInt(addr int, ch Channel) (int, bool) {
	v, ok := c.ints[addr][ch]
	return v, ok
}

func (c *paramCache) getFloat(addr int, ch Channel) (float64, bool) {
	v, ok := c.floats[addr][ch]
	return v, ok
}

// clampAddr confines an address to [0, n). Negative addresses collapse to 0,
// matching the host framework's convention for unaddressed calls.
func clampAddr(addr, n int) int {
	if addr < 0 {
		return 0
	}
	if addr >= n {
		return n - 1
	}
	return addr
}
