// Package uncalled maps streaming nanopore signal against a reference
// genome without basecalling: raw samples are segmented into events,
// normalised into a pore model's level space, and matched by extending
// a bounded population of candidate paths over an FM-index until
// enough coherent seeds accumulate to call the read's origin
package uncalled

import (
	"fmt"
	"log"
	"sort"

	"github.com/agent001/UNCALLED/config"
)

// State is the read lifecycle state of a Mapper
type State uint8

const (
	// StateInactive means no read is assigned
	StateInactive State = iota

	// StateMapping means a read is in flight
	StateMapping

	// StateSuccess and StateFailure are terminal until the next read
	StateSuccess
	StateFailure
)

// Mapper performs streaming alignment of one channel's signal against
// the reference: each normalised event extends a bounded population
// of candidate paths over the FM-index, high-confidence paths are
// verified against the suffix array, and the seed tracker decides
// when enough coherent seeds have accumulated to call the mapping.
//
// A Mapper is single-threaded and owns all its buffers; the model,
// FM-index and config are shared read-only between channels
type Mapper struct {
	conf  *config.Config
	model *Model
	fmi   *FMIndex

	lay      pathLayout
	detector *EventDetector
	norm     *Normalizer
	tracker  *SeedTracker

	kmerProbs    []float32
	prevPaths    []pathState
	nextPaths    []pathState
	sourcesAdded []bool
	prevSize     int

	eventI    uint32
	read      ReadBuffer
	state     State
	reset     bool
	lastChunk bool
	timer     Timer
}

// NewMapper builds a mapper for one channel. All per-event scratch is
// allocated here; the event loop never allocates
func NewMapper(conf *config.Config, model *Model, fmi *FMIndex) (*Mapper, error) {
	if model.KmerLen() != fmi.KmerLen() {
		return nil, fmt.Errorf("model k=%d does not match index k=%d", model.KmerLen(), fmi.KmerLen())
	}

	m := &Mapper{
		conf:     conf,
		model:    model,
		fmi:      fmi,
		lay:      newPathLayout(conf.Mapper.SeedLen),
		detector: NewEventDetector(&conf.Event),
		norm:     NewNormalizer(model, conf.Mapper.EvtBufferLen),
		tracker:  NewSeedTracker(&conf.Mapper),
		state:    StateInactive,
	}

	m.kmerProbs = make([]float32, model.KmerCount())
	m.sourcesAdded = make([]bool, model.KmerCount())
	m.prevPaths = make([]pathState, conf.Mapper.MaxPaths)
	m.nextPaths = make([]pathState, conf.Mapper.MaxPaths)
	for i := range m.prevPaths {
		m.prevPaths[i].probSums = make([]float32, conf.Mapper.SeedLen+1)
		m.nextPaths[i].probSums = make([]float32, conf.Mapper.SeedLen+1)
	}

	m.timer = NewTimer()
	return m, nil
}

// NewRead starts mapping a read from its first chunk, discarding any
// read still in flight
func (m *Mapper) NewRead(c *Chunk) {
	if m.prevUnfinished(c.Number) {
		log.Printf("warning: possibly lost read %q on channel %d", m.read.ID, m.read.Channel)
	}

	m.read = NewReadBuffer(c)
	m.prevSize = 0
	m.eventI = 0
	m.reset = false
	m.lastChunk = false
	m.state = StateMapping
	m.tracker.Reset()
	m.detector.Reset()
	m.norm.SkipUnread(0)
	m.timer.Reset()
}

func (m *Mapper) prevUnfinished(nextNumber uint32) bool {
	return m.state == StateMapping && m.read.Number != nextNumber
}

// Finished is true in a terminal state
func (m *Mapper) Finished() bool {
	return m.state == StateSuccess || m.state == StateFailure
}

// GetState returns the lifecycle state
func (m *Mapper) GetState() State {
	return m.state
}

// Deactivate returns the mapper to INACTIVE without reading the
// result
func (m *Mapper) Deactivate() {
	m.state = StateInactive
	m.reset = false
}

// PopLoc returns the read's mapping outcome and releases the mapper
// for the next read
func (m *Mapper) PopLoc() ReadLoc {
	m.state = StateInactive
	m.reset = false
	return m.read.Loc
}

// GetLoc returns the current mapping outcome without releasing
func (m *Mapper) GetLoc() ReadLoc {
	return m.read.Loc
}

// skipEvents accounts for events lost to a normaliser overflow: the
// event counter advances and all live paths are dropped, since their
// history no longer abuts the next event
func (m *Mapper) skipEvents(n uint32) {
	m.eventI += n
	m.prevSize = 0
}

// RequestReset asks the mapper to fail the read at the next event
func (m *Mapper) RequestReset() {
	m.reset = true
}

// EndReset clears a pending reset
func (m *Mapper) EndReset() {
	m.reset = false
}

// IsResetting reports a pending reset
func (m *Mapper) IsResetting() bool {
	return m.reset
}

// ChunkProcessed is true when the buffered chunk has been consumed
func (m *Mapper) ChunkProcessed() bool {
	return m.read.ChunkProcessed()
}

// ReadNumber returns the sequence number of the read in flight
func (m *Mapper) ReadNumber() uint32 {
	return m.read.Number
}

// EventsReady is true while the normaliser holds unread events
func (m *Mapper) EventsReady() bool {
	return !m.norm.Empty()
}

// FinishRead marks the buffered events as the read's last; the read
// fails once they drain without a mapping
func (m *Mapper) FinishRead() {
	m.lastChunk = true
}

// EndRead raises a reset if number identifies the read in flight
func (m *Mapper) EndRead(number uint32) bool {
	if m.read.Number == number {
		m.reset = true
		return true
	}
	return false
}

// SwapChunk queues the read's next chunk. It refuses while the
// current chunk is unprocessed or a reset is pending, and fails the
// read once the chunk budget is exhausted
func (m *Mapper) SwapChunk(c *Chunk) bool {
	if !m.read.ChunkProcessed() || m.reset {
		return false
	}

	if m.conf.Mapper.MaxChunksProc > 0 && m.read.numChunks == m.conf.Mapper.MaxChunksProc {
		m.state = StateFailure
		m.reset = true
		c.Clear()
		return true
	}

	added := m.read.AddChunk(c)
	if !added {
		log.Printf("warning: chunk %s of read %s not added", c.ID, m.read.ID)
	}
	return added
}

// ProcessChunk feeds the buffered chunk's samples through the event
// detector into the normaliser, returning the number of events
// produced. When the normaliser fills, older unread events are
// skipped so the newest chunk's events fit
func (m *Mapper) ProcessChunk() uint16 {
	if m.read.ChunkProcessed() || m.reset {
		return 0
	}

	var nevents uint16
	for _, s := range m.read.chunk {
		if !m.detector.AddSample(s) {
			continue
		}
		mean := m.detector.GetMean()
		if !m.norm.PushEvent(mean) {
			nskip := m.norm.SkipUnread(uint32(nevents))
			m.skipEvents(nskip)
			if !m.norm.PushEvent(mean) {
				log.Printf("error: chunk events cannot fit in normalization buffer")
				return nevents
			}
		}
		nevents++
	}

	m.read.chunk = m.read.chunk[:0]
	m.read.chunkProcessed = true
	return nevents
}

// MapChunk drains buffered events through AddEvent, bounded by a wall
// budget so one channel cannot starve the rest of its schedule slice.
// Returns true when the read reached a terminal state
func (m *Mapper) MapChunk() bool {
	if m.reset || (m.lastChunk && m.norm.Empty()) {
		m.state = StateFailure
		return true
	}

	nevents := m.conf.MaxEvents(m.eventI)
	tlimit := m.conf.Mapper.EvtTimeout * float32(nevents)

	t := NewTimer()
	for i := uint16(0); i < nevents && !m.norm.Empty(); i++ {
		if m.AddEvent(m.norm.PopEvent()) {
			return true
		}
		if t.Get() > tlimit {
			// over budget: leave the rest buffered, resume next slice
			return false
		}
	}
	return false
}

// AddEvent runs one event-step of the branching seed search. Returns
// true when the read reached a terminal state
func (m *Mapper) AddEvent(event float32) bool {
	if m.reset || m.eventI >= m.conf.Mapper.MaxEventsProc {
		m.reset = false
		m.state = StateFailure
		return true
	}

	maxPaths := len(m.nextPaths)
	nextLen := 0

	for kmer := range m.kmerProbs {
		m.kmerProbs[kmer] = m.model.EventMatchProb(event, uint16(kmer))
	}

	// extend previous paths
	for pi := 0; pi < m.prevSize; pi++ {
		prevPath := &m.prevPaths[pi]
		if !prevPath.isValid() {
			continue
		}

		childFound := false
		prevRange := prevPath.fmRange
		prevKmer := prevPath.kmer

		thresh := m.conf.ProbThresh(prevRange.Length())

		if int(prevPath.consecStays) < m.conf.Mapper.MaxConsecStay &&
			m.kmerProbs[prevKmer] >= thresh {

			m.nextPaths[nextLen].makeChild(&m.lay, prevPath, prevRange,
				prevKmer, m.kmerProbs[prevKmer], EventStay)
			childFound = true

			nextLen++
			if nextLen == maxPaths {
				break
			}
		}

		for b := uint8(0); b < alphSize; b++ {
			nextKmer := m.model.Neighbor(prevKmer, b)
			if m.kmerProbs[nextKmer] < thresh {
				continue
			}

			nextRange := m.fmi.GetNeighbor(prevRange, b)
			if !nextRange.Valid() {
				continue
			}

			m.nextPaths[nextLen].makeChild(&m.lay, prevPath, nextRange,
				nextKmer, m.kmerProbs[nextKmer], EventMatch)
			childFound = true

			nextLen++
			if nextLen == maxPaths {
				break
			}
		}

		// a dead end loses all its evidence unless it is verified now,
		// under the relaxed path-ended seed rules
		if !childFound && !prevPath.saChecked {
			m.updateSeeds(prevPath, true)
		}

		if nextLen == maxPaths {
			break
		}
	}

	if nextLen > 0 {
		nextSize := nextLen

		// stable sort keeps insertion order among exact ties, making
		// the event-step deterministic for identical inputs
		sort.SliceStable(m.nextPaths[:nextSize], func(i, j int) bool {
			return pathLess(&m.nextPaths[i], &m.nextPaths[j])
		})

		sourceProb := m.conf.SourceProb()
		prevKmer := m.model.KmerCount() // sentinel: no k-mer group open
		var uncheckedRange, sourceRange Range

		for i := 0; i < nextSize; i++ {
			sourceKmer := m.nextPaths[i].kmer

			// source covering the k-mer range before this path
			if uint32(sourceKmer) != prevKmer && nextLen < maxPaths &&
				m.kmerProbs[sourceKmer] >= sourceProb {

				m.sourcesAdded[sourceKmer] = true
				kr := m.fmi.KmerRange(sourceKmer)

				if m.nextPaths[i].fmRange.Start > 0 {
					sourceRange = NewRange(kr.Start, m.nextPaths[i].fmRange.Start-1)
					if sourceRange.Valid() {
						m.nextPaths[nextLen].makeSource(sourceRange, sourceKmer, m.kmerProbs[sourceKmer])
						nextLen++
					}
				}

				uncheckedRange = NewRange(m.nextPaths[i].fmRange.End+1, kr.End)
			}

			prevKmer = uint32(sourceKmer)

			// drop duplicate ranges; the sort tiebreak guarantees the
			// surviving sibling is the higher-probability one
			if i < nextSize-1 && m.nextPaths[i].fmRange.Equals(m.nextPaths[i+1].fmRange) {
				m.nextPaths[i].invalidate()
				continue
			}

			// source covering the k-mer range after this path
			if nextLen < maxPaths && m.kmerProbs[sourceKmer] >= sourceProb {
				sourceRange = uncheckedRange

				if i < nextSize-1 && sourceKmer == m.nextPaths[i+1].kmer {
					if m.nextPaths[i+1].fmRange.Start > 0 {
						sourceRange.End = m.nextPaths[i+1].fmRange.Start - 1
					} else {
						sourceRange = NewRange(1, 0)
					}
					if uncheckedRange.Start <= m.nextPaths[i+1].fmRange.End {
						uncheckedRange.Start = m.nextPaths[i+1].fmRange.End + 1
					}
				}

				if sourceRange.Valid() {
					m.nextPaths[nextLen].makeSource(sourceRange, sourceKmer, m.kmerProbs[sourceKmer])
					nextLen++
				}
			}

			m.updateSeeds(&m.nextPaths[i], false)
		}
	}

	// fresh sources for k-mers no existing path represents
	sourceProb := m.conf.SourceProb()
	for kmer := uint32(0); kmer < m.model.KmerCount() && nextLen < maxPaths; kmer++ {
		kr := m.fmi.KmerRange(uint16(kmer))

		if !m.sourcesAdded[kmer] &&
			m.kmerProbs[kmer] >= sourceProb &&
			kr.Valid() {

			m.nextPaths[nextLen].makeSource(kr, uint16(kmer), m.kmerProbs[kmer])
			nextLen++
		} else {
			m.sourcesAdded[kmer] = false
		}
	}

	m.prevSize = nextLen
	m.prevPaths, m.nextPaths = m.nextPaths, m.prevPaths

	m.eventI++

	sg := m.tracker.GetFinal()
	if sg.Valid() {
		m.state = StateSuccess
		m.setRefLoc(sg)
		return true
	}

	return false
}

// updateSeeds verifies a qualifying path against the suffix array and
// forwards one seed per FM-range slot to the tracker. A path-ended
// seed belongs to the previous event, since the path failed to extend
// into the current one
func (m *Mapper) updateSeeds(p *pathState, pathEnded bool) {
	if !p.isSeedValid(&m.lay, &m.conf.Mapper, pathEnded) {
		return
	}

	p.saChecked = true

	evt := m.eventI
	if pathEnded {
		evt--
	}

	for s := p.fmRange.Start; s <= p.fmRange.End; s++ {
		// reverse the reference coords so both strands read L->R
		refEn := m.fmi.Size() - m.fmi.SA(s) + 1
		m.tracker.AddSeed(refEn, p.matchLen(), evt)
	}
}

// setRefLoc translates the winning seed group into reference
// coordinates and a read-span estimate
func (m *Mapper) setRefLoc(seeds SeedGroup) {
	kShift := uint64(m.model.KmerLen() - 1)

	fwd := seeds.RefSt > m.fmi.Size()/2

	var saSt uint64
	if fwd {
		if end := seeds.RefEn.End + kShift; end < m.fmi.Size() {
			saSt = m.fmi.Size() - end
		}
	} else {
		saSt = seeds.RefSt
	}

	rt := &m.conf.Realtime
	rdLen := uint64(float64(rt.BasesPerSec) * float64(m.read.RawLen()) / float64(rt.SampleRate))
	rdSt := uint64(m.conf.Mapper.MaxStayFrac * float32(seeds.EvtSt))
	rdEn := uint64(m.conf.Mapper.MaxStayFrac*float32(seeds.EvtEn+uint32(m.conf.Mapper.SeedLen))) + kShift

	rfName, rfSt, rfLen, ok := m.fmi.TranslateLoc(saSt)
	if !ok {
		// seed group straddles the strand boundary; report the raw
		// packed coordinate rather than dropping the mapping
		rfName = "*"
		rfSt = saSt
		rfLen = m.fmi.Size()
	}
	rfEn := rfSt + (seeds.RefEn.End - seeds.RefSt) + kShift

	matches := seeds.TotalLen + uint16(kShift)

	m.read.Loc.SetMapped(rdSt, rdEn, rdLen, rfName, rfSt, rfEn, rfLen, matches, fwd)
	m.read.Loc.SetTime(m.timer.Get())
}

// MapSignal drives a whole read's raw signal through the chunked
// lifecycle, as the offline map command does, and returns its
// location. The mapper is left INACTIVE
func (m *Mapper) MapSignal(id string, channel uint16, number uint32, signal []float32) ReadLoc {
	chunkLen := m.conf.Realtime.ChunkLen
	if chunkLen <= 0 {
		chunkLen = len(signal)
	}

	for st := 0; st < len(signal) && !m.Finished(); st += chunkLen {
		en := st + chunkLen
		if en > len(signal) {
			en = len(signal)
		}
		c := Chunk{ID: id, Channel: channel, Number: number, Signal: signal[st:en]}

		if st == 0 {
			m.NewRead(&c)
		} else if done := m.SwapChunk(&c); !done && m.Finished() {
			break
		}

		m.ProcessChunk()
		for !m.Finished() && !m.norm.Empty() {
			if m.MapChunk() {
				break
			}
		}
	}

	m.lastChunk = true
	for !m.Finished() {
		if m.MapChunk() {
			break
		}
	}

	rt := &m.conf.Realtime
	m.read.Loc.SetReadLen(uint64(float64(rt.BasesPerSec) * float64(m.read.RawLen()) / float64(rt.SampleRate)))
	m.read.Loc.SetTime(m.timer.Get())
	return m.PopLoc()
}
