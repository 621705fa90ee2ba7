package uncalled

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// alphSize is the nucleotide alphabet size
const alphSize = 4

var baseChars = [alphSize]byte{'A', 'C', 'G', 'T'}

// Model is a pore k-mer model: the expected current level (mean and
// spread) produced while each k-mer occupies the pore. It scores
// normalised event means against k-mers and enumerates the k-mers
// reachable by advancing one base
type Model struct {
	k         uint8
	kmerCount uint32
	kmerMask  uint16

	means []float32
	stdvs []float32

	// -log(stdv * sqrt(2pi)) per k-mer, so EventMatchProb is one
	// subtract and one multiply
	lognormDenoms []float32

	// mean and stdv over all k-mer levels, the normalizer's target
	modelMean float32
	modelStdv float32
}

// NewModel builds a model from per-k-mer level means and standard
// deviations. len(means) must be 4^k
func NewModel(k int, means, stdvs []float32) (*Model, error) {
	count := 1 << (2 * uint(k))
	if len(means) != count || len(stdvs) != count {
		return nil, fmt.Errorf("model for k=%d needs %d levels, got %d means and %d stdvs",
			k, count, len(means), len(stdvs))
	}

	m := &Model{
		k:             uint8(k),
		kmerCount:     uint32(count),
		kmerMask:      uint16(count - 1),
		means:         means,
		stdvs:         stdvs,
		lognormDenoms: make([]float32, count),
	}

	var sum, sumsq float64
	for i, mean := range means {
		if stdvs[i] <= 0 {
			return nil, fmt.Errorf("k-mer %s has non-positive stdv %f", m.KmerToStr(uint16(i)), stdvs[i])
		}
		m.lognormDenoms[i] = float32(-math.Log(float64(stdvs[i]) * math.Sqrt(2*math.Pi)))
		sum += float64(mean)
		sumsq += float64(mean) * float64(mean)
	}
	n := float64(count)
	m.modelMean = float32(sum / n)
	m.modelStdv = float32(math.Sqrt(sumsq/n - (sum/n)*(sum/n)))

	return m, nil
}

// LoadModel reads a tab-separated pore model file with lines of
// "kmer<TAB>level_mean<TAB>level_stdv". Header lines and extra
// columns are ignored. Gzipped files are detected by suffix
func LoadModel(filename string) (*Model, error) {
	fin, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fin.Close()

	var scan *bufio.Scanner
	if strings.HasSuffix(filename, ".gz") {
		gz, err := gzip.NewReader(fin)
		if err != nil {
			return nil, fmt.Errorf("model file %s: %v", filename, err)
		}
		defer gz.Close()
		scan = bufio.NewScanner(gz)
	} else {
		scan = bufio.NewScanner(fin)
	}

	var k int
	var means, stdvs []float32

	for scan.Scan() {
		line := scan.Text()
		if len(line) == 0 || line[0] < 'A' || line[0] > 'T' {
			continue // header or comment
		}
		tokens := strings.Split(line, "\t")
		if len(tokens) < 3 {
			continue
		}

		if k == 0 {
			k = len(tokens[0])
			count := 1 << (2 * uint(k))
			means = make([]float32, count)
			stdvs = make([]float32, count)
		}

		kmer, err := StrToKmer(tokens[0])
		if err != nil {
			return nil, fmt.Errorf("model file %s: %v", filename, err)
		}
		mean, err := strconv.ParseFloat(tokens[1], 32)
		if err != nil {
			return nil, fmt.Errorf("model file %s: bad level mean %q", filename, tokens[1])
		}
		stdv, err := strconv.ParseFloat(tokens[2], 32)
		if err != nil {
			return nil, fmt.Errorf("model file %s: bad level stdv %q", filename, tokens[2])
		}
		means[kmer] = float32(mean)
		stdvs[kmer] = float32(stdv)
	}
	if err := scan.Err(); err != nil {
		return nil, err
	}
	if k == 0 {
		return nil, fmt.Errorf("model file %s: no k-mer levels found", filename)
	}

	return NewModel(k, means, stdvs)
}

// KmerLen returns k
func (m *Model) KmerLen() uint8 {
	return m.k
}

// KmerCount returns 4^k
func (m *Model) KmerCount() uint32 {
	return m.kmerCount
}

// EventMatchProb is the log-normal density of observing a normalised
// event mean given the k-mer occupies the pore
func (m *Model) EventMatchProb(mean float32, kmer uint16) float32 {
	d := (mean - m.means[kmer]) / m.stdvs[kmer]
	return -0.5*d*d + m.lognormDenoms[kmer]
}

// Neighbor returns the k-mer reached by advancing one base: the
// oldest base is shifted out and b appended at the 3' end
func (m *Model) Neighbor(kmer uint16, b uint8) uint16 {
	return ((kmer << 2) | uint16(b)) & m.kmerMask
}

// BaseAt returns the i-th base of a k-mer, 5' first
func (m *Model) BaseAt(kmer uint16, i int) uint8 {
	shift := 2 * (int(m.k) - 1 - i)
	return uint8((kmer >> uint(shift)) & 3)
}

// Mean returns the level mean for a k-mer
func (m *Model) Mean(kmer uint16) float32 {
	return m.means[kmer]
}

// ModelMean is the mean over all k-mer levels
func (m *Model) ModelMean() float32 {
	return m.modelMean
}

// ModelStdv is the standard deviation over all k-mer levels
func (m *Model) ModelStdv() float32 {
	return m.modelStdv
}

// KmerToStr renders a k-mer as bases, 5' first
func (m *Model) KmerToStr(kmer uint16) string {
	out := make([]byte, m.k)
	for i := 0; i < int(m.k); i++ {
		out[i] = baseChars[m.BaseAt(kmer, i)]
	}
	return string(out)
}

// StrToKmer parses a base string into its packed k-mer, 5' base in
// the high bits
func StrToKmer(s string) (uint16, error) {
	var kmer uint16
	for i := 0; i < len(s); i++ {
		b, err := baseIndex(s[i])
		if err != nil {
			return 0, err
		}
		kmer = (kmer << 2) | uint16(b)
	}
	return kmer, nil
}

func baseIndex(c byte) (uint8, error) {
	switch c {
	case 'A', 'a':
		return 0, nil
	case 'C', 'c':
		return 1, nil
	case 'G', 'g':
		return 2, nil
	case 'T', 't':
		return 3, nil
	}
	return 0, fmt.Errorf("unexpected base %q", string(c))
}
