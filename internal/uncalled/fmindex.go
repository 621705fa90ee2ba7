package uncalled

import (
	"fmt"
	"sort"

	"github.com/agent001/UNCALLED/config"
)

// nSymbols is the FM alphabet: sentinel plus four bases
const nSymbols = alphSize + 1

// FMIndex is an FM-index over the reverse of the packed reference
// (forward strand followed by its reverse complement). Because the
// indexed text is reversed, each backward-extension step consumes the
// read's next 3' base, so the mapper walks the reference left to
// right as the signal arrives
type FMIndex struct {
	k    uint8
	size uint64 // reference bases indexed, both strands

	bwt    []uint8 // symbols, 0 = sentinel, 1..4 = ACGT
	counts [nSymbols + 1]uint64

	occSample int
	occ       [][nSymbols]uint64

	sa []uint64

	kmerRanges []Range

	contigNames   []string
	contigOffsets []uint64
	contigLens    []uint64
	fwdLen        uint64

	refHash uint64
}

// BuildFMIndex indexes both strands of the reference contigs and
// precomputes the initial FM-range of every k-mer
func BuildFMIndex(contigs []Contig, k int, conf *config.IndexConfig) (*FMIndex, error) {
	if k < 1 || k > 8 {
		return nil, fmt.Errorf("k must be between 1 and 8, got %d", k)
	}

	fmi := &FMIndex{
		k:         uint8(k),
		occSample: conf.OccSample,
	}
	if fmi.occSample <= 0 {
		fmi.occSample = 128
	}

	var fwd []uint8
	for _, c := range contigs {
		fmi.contigNames = append(fmi.contigNames, c.Name)
		fmi.contigOffsets = append(fmi.contigOffsets, uint64(len(fwd)))
		fmi.contigLens = append(fmi.contigLens, uint64(len(c.Seq)))
		fwd = append(fwd, c.Seq...)
	}
	fmi.fwdLen = uint64(len(fwd))

	full := append(fwd, revComp(fwd)...)
	n := len(full)
	fmi.size = uint64(n)

	// reversed text plus sentinel
	text := make([]uint8, n+1)
	for i, b := range full {
		text[n-1-i] = b + 1
	}
	text[n] = 0

	sa := buildSuffixArray(text)
	fmi.sa = sa

	fmi.bwt = make([]uint8, n+1)
	for i, s := range sa {
		if s == 0 {
			fmi.bwt[i] = text[n]
		} else {
			fmi.bwt[i] = text[s-1]
		}
	}

	var symCounts [nSymbols]uint64
	for _, s := range text {
		symCounts[s]++
	}
	for s := 1; s <= nSymbols; s++ {
		fmi.counts[s] = fmi.counts[s-1] + symCounts[s-1]
	}

	fmi.buildOcc()
	fmi.buildKmerRanges()
	fmi.refHash = hashReference(full)

	return fmi, nil
}

func (fmi *FMIndex) buildOcc() {
	nCheck := len(fmi.bwt)/fmi.occSample + 1
	fmi.occ = make([][nSymbols]uint64, nCheck)

	var running [nSymbols]uint64
	for i, s := range fmi.bwt {
		if i%fmi.occSample == 0 {
			fmi.occ[i/fmi.occSample] = running
		}
		running[s]++
	}
}

func (fmi *FMIndex) buildKmerRanges() {
	count := 1 << (2 * uint(fmi.k))
	fmi.kmerRanges = make([]Range, count)

	for kmer := 0; kmer < count; kmer++ {
		r := NewRange(0, uint64(len(fmi.bwt))-1)
		for i := 0; i < int(fmi.k) && r.Valid(); i++ {
			shift := 2 * (int(fmi.k) - 1 - i)
			b := uint8((kmer >> uint(shift)) & 3)
			r = fmi.GetNeighbor(r, b)
		}
		fmi.kmerRanges[kmer] = r
	}
}

// Size is the number of reference bases indexed (both strands)
func (fmi *FMIndex) Size() uint64 {
	return fmi.size
}

// KmerLen returns the k the k-mer ranges were built for
func (fmi *FMIndex) KmerLen() uint8 {
	return fmi.k
}

// KmerRange is the precomputed FM-range of all suffixes beginning
// with the k-mer. Invalid when the k-mer never occurs
func (fmi *FMIndex) KmerRange(kmer uint16) Range {
	return fmi.kmerRanges[kmer]
}

// occLE counts occurrences of sym in bwt[0..i]
func (fmi *FMIndex) occLE(sym uint8, i uint64) uint64 {
	check := i / uint64(fmi.occSample)
	count := fmi.occ[check][sym]
	for j := check * uint64(fmi.occSample); j <= i; j++ {
		if fmi.bwt[j] == sym {
			count++
		}
	}
	return count
}

// GetNeighbor narrows an FM-range by one base: the returned range
// spans all suffixes that extend r's query with base b. The result is
// invalid when no occurrence extends
func (fmi *FMIndex) GetNeighbor(r Range, b uint8) Range {
	sym := b + 1

	var before uint64
	if r.Start > 0 {
		before = fmi.occLE(sym, r.Start-1)
	}
	within := fmi.occLE(sym, r.End)

	return Range{
		Start: fmi.counts[sym] + before,
		End:   fmi.counts[sym] + within - 1,
	}
}

// SA returns the text position of suffix-array slot i
func (fmi *FMIndex) SA(i uint64) uint64 {
	return fmi.sa[i]
}

// TranslateLoc maps a forward-strand reference coordinate to its
// contig name and offset, returning the contig length. ok is false
// when the coordinate falls outside the forward strand
func (fmi *FMIndex) TranslateLoc(pos uint64) (name string, refSt uint64, contigLen uint64, ok bool) {
	if pos >= fmi.fwdLen {
		return "", 0, 0, false
	}
	i := sort.Search(len(fmi.contigOffsets), func(i int) bool {
		return fmi.contigOffsets[i] > pos
	}) - 1
	return fmi.contigNames[i], pos - fmi.contigOffsets[i], fmi.contigLens[i], true
}

// buildSuffixArray sorts the suffixes of text by prefix doubling
func buildSuffixArray(text []uint8) []uint64 {
	n := len(text)
	sa := make([]int, n)
	rank := make([]int, n)
	tmp := make([]int, n)

	for i := range sa {
		sa[i] = i
		rank[i] = int(text[i])
	}

	for step := 1; ; step *= 2 {
		less := func(a, b int) bool {
			if rank[a] != rank[b] {
				return rank[a] < rank[b]
			}
			ra, rb := -1, -1
			if a+step < n {
				ra = rank[a+step]
			}
			if b+step < n {
				rb = rank[b+step]
			}
			return ra < rb
		}
		sort.Slice(sa, func(i, j int) bool { return less(sa[i], sa[j]) })

		tmp[sa[0]] = 0
		for i := 1; i < n; i++ {
			tmp[sa[i]] = tmp[sa[i-1]]
			if less(sa[i-1], sa[i]) {
				tmp[sa[i]]++
			}
		}
		copy(rank, tmp)

		if rank[sa[n-1]] == n-1 {
			break
		}
	}

	out := make([]uint64, n)
	for i, s := range sa {
		out[i] = uint64(s)
	}
	return out
}
