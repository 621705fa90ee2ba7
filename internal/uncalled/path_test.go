package uncalled

import (
	"math"
	"testing"
)

func newTestPath(lay *pathLayout) *pathState {
	return &pathState{probSums: make([]float32, int(lay.maxPathLen)+1)}
}

func approx(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-5
}

func Test_MakeSource(t *testing.T) {
	lay := newPathLayout(6)
	p := newTestPath(&lay)

	p.makeSource(NewRange(10, 20), 42, -1.5)

	if !p.isValid() || p.length != 1 {
		t.Fatalf("source should be a valid length-1 path, got length %d", p.length)
	}
	if p.kmer != 42 || !p.fmRange.Equals(NewRange(10, 20)) {
		t.Errorf("source kmer/range = %d/%v", p.kmer, p.fmRange)
	}
	if p.typeCounts[EventMatch] != 1 || p.typeCounts[EventStay] != 0 {
		t.Errorf("source type counts = %v, want [1 0]", p.typeCounts)
	}
	if !approx(p.seedProb, -1.5) || !approx(p.probSums[0], 0) || !approx(p.probSums[1], -1.5) {
		t.Errorf("source prob sums = %v, seed prob %v", p.probSums[:2], p.seedProb)
	}
	if p.saChecked || p.consecStays != 0 || p.eventTypes != 0 {
		t.Errorf("source history not cleared: %+v", p)
	}
}

// extend a path through a full window and past it, checking the type
// counts, the packed event-type window, consecutive stays, and the
// prefix sums at every step
func Test_MakeChildWindow(t *testing.T) {
	lay := newPathLayout(6)

	steps := []struct {
		typ        EventType
		wantLen    uint8
		wantCounts [NumEventTypes]uint8
		wantStays  uint8
		wantProb   float32
	}{
		{EventStay, 2, [NumEventTypes]uint8{1, 1}, 1, 0.35},
		{EventMatch, 3, [NumEventTypes]uint8{2, 1}, 0, 0.4},
		{EventMatch, 4, [NumEventTypes]uint8{3, 1}, 0, 0.425},
		{EventStay, 5, [NumEventTypes]uint8{3, 2}, 1, 0.44},
		{EventMatch, 6, [NumEventTypes]uint8{4, 2}, 0, 0.45},
		// window full: the prefix sums drop the source event, while the
		// type counts drop the parent's tail type: the first stay, then
		// the match after it
		{EventMatch, 7, [NumEventTypes]uint8{5, 1}, 0, 0.5},
		{EventStay, 7, [NumEventTypes]uint8{4, 2}, 1, 0.5},
	}

	p := newTestPath(&lay)
	p.makeSource(NewRange(0, 100), 7, 0.2)

	for i, step := range steps {
		child := newTestPath(&lay)
		child.makeChild(&lay, p, p.fmRange, p.kmer, 0.5, step.typ)

		if child.length != step.wantLen {
			t.Fatalf("step %d: length = %d, want %d", i, child.length, step.wantLen)
		}
		if child.typeCounts != step.wantCounts {
			t.Fatalf("step %d: type counts = %v, want %v", i, child.typeCounts, step.wantCounts)
		}
		if child.consecStays != step.wantStays {
			t.Fatalf("step %d: consec stays = %d, want %d", i, child.consecStays, step.wantStays)
		}
		if !approx(child.seedProb, step.wantProb) {
			t.Fatalf("step %d: seed prob = %v, want %v", i, child.seedProb, step.wantProb)
		}
		if child.typeHead(&lay) != step.typ {
			t.Fatalf("step %d: type head = %d, want %d", i, child.typeHead(&lay), step.typ)
		}

		total := 0
		for _, c := range child.typeCounts {
			total += int(c)
		}
		want := int(child.length)
		if want > int(lay.maxPathLen) {
			want = int(lay.maxPathLen)
		}
		if total != want {
			t.Fatalf("step %d: type counts sum to %d, want %d", i, total, want)
		}

		p = child
	}

	// prefix sums must stay a true prefix of the tail window
	window := int(lay.maxPathLen)
	if !approx(p.seedProb, (p.probSums[window]-p.probSums[0])/float32(window)) {
		t.Errorf("seed prob %v does not match prob sums %v", p.seedProb, p.probSums)
	}
	for i := 1; i <= window; i++ {
		if p.probSums[i] < p.probSums[i-1] {
			t.Errorf("prob sums decreased at %d: %v", i, p.probSums)
		}
	}
}

// a STAY child keeps its parent's range and k-mer
func Test_StayChild(t *testing.T) {
	lay := newPathLayout(6)

	p := newTestPath(&lay)
	p.makeSource(NewRange(5, 9), 3, 0.1)

	child := newTestPath(&lay)
	child.makeChild(&lay, p, p.fmRange, p.kmer, 0.1, EventStay)

	if !child.fmRange.Equals(p.fmRange) || child.kmer != p.kmer {
		t.Errorf("stay child range/kmer = %v/%d, want parent's %v/%d",
			child.fmRange, child.kmer, p.fmRange, p.kmer)
	}
	if child.consecStays != p.consecStays+1 {
		t.Errorf("stay child consec stays = %d, want %d", child.consecStays, p.consecStays+1)
	}
}

func Test_InvalidateRestore(t *testing.T) {
	lay := newPathLayout(6)

	p := newTestPath(&lay)
	p.makeSource(NewRange(1, 2), 9, 0.3)

	p.invalidate()
	if p.isValid() {
		t.Fatal("invalidated path should not be valid")
	}

	p.makeSource(NewRange(3, 4), 11, 0.4)
	if !p.isValid() || p.kmer != 11 || !p.fmRange.Equals(NewRange(3, 4)) {
		t.Errorf("makeSource should fully restore the slot, got %+v", p)
	}
}

func Test_IsSeedValid(t *testing.T) {
	lay := newPathLayout(6)
	conf := &testConfig().Mapper

	base := func() *pathState {
		p := newTestPath(&lay)
		p.length = 7
		p.fmRange = NewRange(50, 50)
		p.typeCounts = [NumEventTypes]uint8{5, 1}
		p.seedProb = -1
		return p
	}

	tests := []struct {
		name      string
		mutate    func(*pathState)
		pathEnded bool
		want      bool
	}{
		{
			"unique range passes",
			func(p *pathState) {},
			false,
			true,
		},
		{
			"wide range fails live",
			func(p *pathState) { p.fmRange = NewRange(50, 52) },
			false,
			false,
		},
		{
			"wide range passes at path end",
			func(p *pathState) { p.fmRange = NewRange(50, 52) },
			true,
			true,
		},
		{
			"too many copies fails even at path end",
			func(p *pathState) { p.fmRange = NewRange(50, 55) },
			true,
			false,
		},
		{
			"too short",
			func(p *pathState) { p.length = 5 },
			false,
			false,
		},
		{
			"stay head fails live",
			func(p *pathState) { p.eventTypes = lay.typeAdds[EventStay] },
			false,
			false,
		},
		{
			"stay head passes at path end",
			func(p *pathState) { p.eventTypes = lay.typeAdds[EventStay] },
			true,
			true,
		},
		{
			"stay fraction fails live",
			func(p *pathState) { p.typeCounts = [NumEventTypes]uint8{2, 4} },
			false,
			false,
		},
		{
			"low probability",
			func(p *pathState) { p.seedProb = -7 },
			false,
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base()
			tt.mutate(p)
			if got := p.isSeedValid(&lay, conf, tt.pathEnded); got != tt.want {
				t.Errorf("isSeedValid(pathEnded=%v) = %v, want %v", tt.pathEnded, got, tt.want)
			}
		})
	}
}

// among paths with the same range the highest probability must sort
// last, so the dedup pass keeps it
func Test_PathOrdering(t *testing.T) {
	lay := newPathLayout(6)

	a := newTestPath(&lay)
	a.makeSource(NewRange(5, 9), 1, -2)
	b := newTestPath(&lay)
	b.makeSource(NewRange(5, 9), 1, -1)
	c := newTestPath(&lay)
	c.makeSource(NewRange(6, 6), 2, -9)

	if !pathLess(a, b) {
		t.Error("lower probability should sort first among equal ranges")
	}
	if pathLess(b, a) {
		t.Error("higher probability should sort last among equal ranges")
	}
	if !pathLess(a, c) || !pathLess(b, c) {
		t.Error("range order should dominate probability")
	}
}
