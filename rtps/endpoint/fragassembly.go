package endpoint

// FragmentAssembler reassembles the fragments of one oversized cache-change
// delivered via DATA_FRAG (spec.md §4.4), modeled on the chunk-counting
// reassembler idiom used elsewhere in this codebase for split datagrams.
type FragmentAssembler struct {
	dataSize     uint32
	fragmentSize uint16
	chunks       map[uint32][]byte
	received     int
	total        int
}

// NewFragmentAssembler prepares to reassemble a payload of dataSize bytes
// split into fragmentSize-byte pieces.
func NewFragmentAssembler(dataSize uint32, fragmentSize uint16) *FragmentAssembler {
	total := int(dataSize) / int(fragmentSize)
	if int(dataSize)%int(fragmentSize) != 0 {
		total++
	}
	return &FragmentAssembler{
		dataSize:     dataSize,
		fragmentSize: fragmentSize,
		chunks:       make(map[uint32][]byte),
		total:        total,
	}
}

// AddFragments ingests fragmentCount fragments of a DATA_FRAG submessage
// starting at startingNum (1-based), splitting payload into fragmentSize
// pieces. Returns the reassembled payload once every fragment has arrived.
func (a *FragmentAssembler) AddFragments(startingNum uint32, fragmentCount uint16, payload []byte) ([]byte, bool) {
	for i := uint16(0); i < fragmentCount; i++ {
		fragNum := startingNum + uint32(i)
		if _, ok := a.chunks[fragNum]; ok {
			continue
		}
		start := int(i) * int(a.fragmentSize)
		end := start + int(a.fragmentSize)
		if end > len(payload) {
			end = len(payload)
		}
		if start >= end {
			continue
		}
		a.chunks[fragNum] = payload[start:end]
		a.received++
	}
	if a.received < a.total {
		return nil, false
	}
	full := make([]byte, 0, a.dataSize)
	for n := uint32(1); n <= uint32(a.total); n++ {
		full = append(full, a.chunks[n]...)
	}
	return full, true
}

// MissingFragments returns the 1-based fragment numbers not yet received.
func (a *FragmentAssembler) MissingFragments() []uint32 {
	var out []uint32
	for n := uint32(1); n <= uint32(a.total); n++ {
		if _, ok := a.chunks[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}
