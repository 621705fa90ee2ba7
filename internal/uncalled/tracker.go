package uncalled

import (
	"math"

	"github.com/agent001/UNCALLED/config"
)

// SeedGroup is a cluster of coherent seeds: reference and event spans
// plus the total non-overlapping match length accumulated
type SeedGroup struct {
	RefSt    uint64
	RefEn    Range // spread of seed end positions, first to latest
	EvtSt    uint32
	EvtEn    uint32
	TotalLen uint16
}

// Valid is true for a group returned by GetFinal once the tracker's
// confidence thresholds are met
func (g SeedGroup) Valid() bool {
	return g.TotalLen > 0
}

// SeedTracker clusters incoming seeds by diagonal proximity and
// decides when one cluster has accumulated enough coherent evidence
// to call a mapping. It holds plain value triples only, never path
// state
type SeedTracker struct {
	conf *config.MapperConfig

	clusters  []SeedGroup
	lenSum    uint64
	seedCount uint32
}

// NewSeedTracker builds a tracker using the mapper's confidence
// settings
func NewSeedTracker(conf *config.MapperConfig) *SeedTracker {
	return &SeedTracker{conf: conf}
}

// Reset drops all clusters
func (t *SeedTracker) Reset() {
	t.clusters = t.clusters[:0]
	t.lenSum = 0
	t.seedCount = 0
}

// SeedCount is the number of seeds added since the last reset
func (t *SeedTracker) SeedCount() uint32 {
	return t.seedCount
}

// AddSeed records one verified seed: a reference end coordinate, the
// number of reference bases it spans, and the event it ended on. The
// seed joins the cluster whose diagonal it falls nearest, within a
// band of one seed length, or starts a new cluster
func (t *SeedTracker) AddSeed(refEn uint64, matchLen uint8, evtI uint32) {
	t.seedCount++
	band := uint64(t.conf.SeedLen)

	best := -1
	var bestSkew uint64 = math.MaxUint64

	for i := range t.clusters {
		c := &t.clusters[i]
		if refEn < c.RefEn.End || evtI < c.EvtEn {
			continue
		}
		deltaRef := refEn - c.RefEn.End
		deltaEvt := uint64(evtI - c.EvtEn)

		// the reference never advances faster than events, and with
		// stays it advances slower, but not arbitrarily so
		if deltaRef > deltaEvt+band || deltaEvt > 2*deltaRef+band {
			continue
		}

		var skew uint64
		if deltaRef > deltaEvt {
			skew = deltaRef - deltaEvt
		} else {
			skew = deltaEvt - deltaRef
		}
		if skew < bestSkew {
			bestSkew = skew
			best = i
		}
	}

	if best < 0 {
		st := uint64(0)
		if refEn > uint64(matchLen) {
			st = refEn - uint64(matchLen)
		}
		t.clusters = append(t.clusters, SeedGroup{
			RefSt:    st,
			RefEn:    NewRange(refEn, refEn),
			EvtSt:    evtI,
			EvtEn:    evtI,
			TotalLen: uint16(matchLen),
		})
		t.lenSum += uint64(matchLen)
		return
	}

	c := &t.clusters[best]
	added := refEn - c.RefEn.End
	if added > uint64(matchLen) {
		added = uint64(matchLen)
	}
	c.RefEn.End = refEn
	c.EvtEn = evtI
	c.TotalLen += uint16(added)
	t.lenSum += added
}

// GetFinal returns the top cluster when it is long enough and
// sufficiently ahead of the competition, otherwise an invalid group
func (t *SeedTracker) GetFinal() SeedGroup {
	if len(t.clusters) == 0 {
		return SeedGroup{}
	}

	top, second := -1, -1
	for i := range t.clusters {
		if top < 0 || t.clusters[i].TotalLen > t.clusters[top].TotalLen {
			second = top
			top = i
		} else if second < 0 || t.clusters[i].TotalLen > t.clusters[second].TotalLen {
			second = i
		}
	}

	best := t.clusters[top]
	if int(best.TotalLen) < t.conf.MinAlnLen {
		return SeedGroup{}
	}

	topConf := float32(math.MaxFloat32)
	if second >= 0 && t.clusters[second].TotalLen > 0 {
		topConf = float32(best.TotalLen) / float32(t.clusters[second].TotalLen)
	}

	meanConf := float32(math.MaxFloat32)
	if len(t.clusters) > 1 {
		rest := float32(t.lenSum-uint64(best.TotalLen)) / float32(len(t.clusters)-1)
		if rest > 0 {
			meanConf = float32(best.TotalLen) / rest
		}
	}

	if topConf < t.conf.MinTopConf || meanConf < t.conf.MinMeanConf {
		return SeedGroup{}
	}
	return best
}
