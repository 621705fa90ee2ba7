package uncalled

import (
	"strings"
	"testing"

	"github.com/agent001/UNCALLED/config"
)

// 60bp reference whose 6bp windows are all unique across both strands,
// so exact paths narrow to a single suffix-array slot quickly
const testRef = "GCTAAAGACAATTACATAACATACACGTCAGCACGAAACTTGTTGGCCCAGTGTGAATCG"

// 14bp repeat occurring three times; every repeat substring of 6bp or
// more occurs exactly three times across both strands of the packed
// reference
const (
	testRep       = "TTTCCTCATGCAAT"
	testRepeatRef = "TCAAAACCATTTTCCTCATGCAATGTCCGTAATGTTTCCTCATGCAATTAGGCGAAATTTTCCTCATGCAATACGTAC"
)

// linear de Bruijn sequence containing every 3-mer exactly once, used
// for full-pipeline runs where the normaliser has to recover the
// model's level space from the read itself
const testDeBruijn = "AAACAAGAATACCACGACTAGCAGGAGTATCATGATTCCCGCCTCGGCGTCTGCTTGGGTGTTTAA"

// testModel is a k=3 model with well-separated levels, so the true
// k-mer dominates every emission
func testModel(t *testing.T) *Model {
	t.Helper()
	means := make([]float32, 64)
	stdvs := make([]float32, 64)
	for i := range means {
		means[i] = 20 + 2.5*float32(i)
		stdvs[i] = 0.3
	}
	m, err := NewModel(3, means, stdvs)
	if err != nil {
		t.Fatalf("failed to build test model: %v", err)
	}
	return m
}

func testConfig() *config.Config {
	c := config.Default()
	c.Index.OccSample = 16
	c.Mapper.SeedLen = 6
	c.Mapper.MaxPaths = 512
	c.Mapper.MaxConsecStay = 3
	c.Mapper.MaxStayFrac = 0.5
	c.Mapper.MinSeedProb = -4
	c.Mapper.MaxRepCopy = 3
	c.Mapper.MinRepLen = 4
	c.Mapper.MaxEventsProc = 1000
	c.Mapper.MaxChunksProc = 0
	c.Mapper.EvtTimeout = 100
	c.Mapper.EvtBufferLen = 128
	c.Mapper.MaxChunkEvents = 64
	c.Mapper.MinMeanConf = 2
	c.Mapper.MinTopConf = 1.5
	c.Mapper.MinAlnLen = 12
	c.Realtime.ChunkLen = 64
	return c
}

func packSeq(t *testing.T, s string) []uint8 {
	t.Helper()
	out := make([]uint8, len(s))
	for i := 0; i < len(s); i++ {
		b, err := baseIndex(s[i])
		if err != nil {
			t.Fatalf("bad test sequence: %v", err)
		}
		out[i] = b
	}
	return out
}

func testIndex(t *testing.T, seq string) *FMIndex {
	t.Helper()
	conf := testConfig()
	fmi, err := BuildFMIndex([]Contig{{Name: "ref", Seq: packSeq(t, seq)}}, 3, &conf.Index)
	if err != nil {
		t.Fatalf("failed to build test index: %v", err)
	}
	return fmi
}

func revCompStr(s string) string {
	comp := map[byte]byte{'A': 'T', 'C': 'G', 'G': 'C', 'T': 'A'}
	var b strings.Builder
	for i := len(s) - 1; i >= 0; i-- {
		b.WriteByte(comp[s[i]])
	}
	return b.String()
}

// eventsOf renders a base sequence as the model-space event means of
// its consecutive k-mers
func eventsOf(t *testing.T, m *Model, seq string) []float32 {
	t.Helper()
	k := int(m.KmerLen())
	events := make([]float32, 0, len(seq)-k+1)
	for i := 0; i+k <= len(seq); i++ {
		kmer, err := StrToKmer(seq[i : i+k])
		if err != nil {
			t.Fatalf("bad test sequence: %v", err)
		}
		events = append(events, m.Mean(kmer))
	}
	return events
}

func newTestMapper(t *testing.T, conf *config.Config, refSeq string) *Mapper {
	t.Helper()
	m, err := NewMapper(conf, testModel(t), testIndex(t, refSeq))
	if err != nil {
		t.Fatalf("failed to build mapper: %v", err)
	}
	return m
}

// startRead puts the mapper in MAPPING state so events can be fed
// directly through AddEvent
func startRead(m *Mapper, number uint32) {
	m.NewRead(&Chunk{ID: "test-read", Number: number})
}
