package uncalled

import (
	"github.com/agent001/UNCALLED/config"
)

// EventType classifies how an event extended a path
type EventType uint8

const (
	// EventMatch advances the path by one reference base
	EventMatch EventType = iota

	// EventStay re-reads the previous k-mer (signal stall)
	EventStay

	// NumEventTypes is the number of distinct event types
	NumEventTypes
)

// typeBits is the packed width of one event type. Two bits leaves
// room for future types without changing the window encoding
const typeBits = 2

// pathLayout holds the per-mapper constants of the packed event-type
// window. maxPathLen is fixed at mapper construction (= seed length),
// so the shift amounts can be precomputed once and shared by every
// path operation
type pathLayout struct {
	maxPathLen uint8
	typeMask   uint64
	typeAdds   [NumEventTypes]uint64
}

func newPathLayout(seedLen int) pathLayout {
	l := pathLayout{
		maxPathLen: uint8(seedLen),
		typeMask:   (1 << typeBits) - 1,
	}
	for t := range l.typeAdds {
		l.typeAdds[t] = uint64(t) << ((uint(seedLen) - 2) * typeBits)
	}
	return l
}

// pathState is one candidate alignment path: the FM-range of the
// reference k-mer suffix it represents, the last k-mer, and a bounded
// window of per-event history. pathStates live in two preallocated
// arrays and are overwritten in place, never heap-allocated per event
type pathState struct {
	fmRange     Range
	kmer        uint16
	length      uint8
	consecStays uint8
	eventTypes  uint64
	typeCounts  [NumEventTypes]uint8
	probSums    []float32 // window prefix sums, len maxPathLen+1
	seedProb    float32
	saChecked   bool
}

// makeSource initialises a length-1 path over a k-mer's FM-range with
// no event history
func (p *pathState) makeSource(r Range, kmer uint16, prob float32) {
	p.length = 1
	p.consecStays = 0
	p.eventTypes = 0
	p.seedProb = prob
	p.fmRange = r
	p.kmer = kmer
	p.saChecked = false

	p.typeCounts[EventMatch] = 1
	for t := 1; t < int(NumEventTypes); t++ {
		p.typeCounts[t] = 0
	}

	p.probSums[0] = 0
	p.probSums[1] = prob
}

// makeChild derives a one-event extension of parent into p. Once the
// window is full the prefix sums shift left by one entry, dropping the
// oldest event's probability, and the type count of the parent's
// oldest recorded event type (typeTail) is decremented
func (p *pathState) makeChild(lay *pathLayout, parent *pathState, r Range, kmer uint16, prob float32, typ EventType) {
	p.length = parent.length
	if parent.length <= lay.maxPathLen {
		p.length++
	}
	p.fmRange = r
	p.kmer = kmer
	p.saChecked = parent.saChecked
	p.eventTypes = lay.typeAdds[typ] | (parent.eventTypes >> typeBits)
	if typ == EventStay {
		p.consecStays = parent.consecStays + 1
	} else {
		p.consecStays = 0
	}

	p.typeCounts = parent.typeCounts
	p.typeCounts[typ]++

	mpl := int(lay.maxPathLen)
	if int(p.length) > mpl {
		copy(p.probSums[:mpl], parent.probSums[1:mpl+1])
		p.probSums[mpl] = p.probSums[mpl-1] + prob
		p.seedProb = (p.probSums[mpl] - p.probSums[0]) / float32(mpl)
		p.typeCounts[parent.typeTail(lay)]--
	} else {
		copy(p.probSums[:p.length], parent.probSums[:p.length])
		p.probSums[p.length] = p.probSums[p.length-1] + prob
		p.seedProb = p.probSums[p.length] / float32(p.length)
	}
}

func (p *pathState) invalidate() {
	p.length = 0
}

func (p *pathState) isValid() bool {
	return p.length > 0
}

// matchLen is the number of MATCH events in the retained window, i.e.
// the number of reference bases the window spans
func (p *pathState) matchLen() uint8 {
	return p.typeCounts[EventMatch]
}

// typeHead is the most recently pushed event type
func (p *pathState) typeHead(lay *pathLayout) EventType {
	return EventType((p.eventTypes >> ((uint(lay.maxPathLen) - 2) * typeBits)) & lay.typeMask)
}

// typeTail is the oldest event type still in the window
func (p *pathState) typeTail(lay *pathLayout) EventType {
	return EventType(p.eventTypes & lay.typeMask)
}

// isSeedValid decides whether this path should be verified against
// the suffix array and reported to the seed tracker. pathEnded relaxes
// the single-copy and stay-fraction rules for dead-end paths so their
// accumulated evidence is not lost in repetitive reference regions
func (p *pathState) isSeedValid(lay *pathLayout, conf *config.MapperConfig, pathEnded bool) bool {
	return (p.fmRange.Length() == 1 ||
		(pathEnded &&
			p.fmRange.Length() <= uint64(conf.MaxRepCopy) &&
			int(p.matchLen()) >= conf.MinRepLen)) &&

		int(p.length) >= conf.SeedLen &&
		(pathEnded || p.typeHead(lay) == EventMatch) &&
		(pathEnded || float32(p.typeCounts[EventStay]) <= conf.MaxStayFrac*float32(conf.SeedLen)) &&
		p.seedProb >= conf.MinSeedProb
}

// pathLess orders paths by FM-range, with seedProb breaking ties so
// that among duplicate ranges the highest-probability path sorts last
// (the dedup pass keeps the last of each run)
func pathLess(a, b *pathState) bool {
	return a.fmRange.Less(b.fmRange) ||
		(a.fmRange.Equals(b.fmRange) && a.seedProb < b.seedProb)
}
