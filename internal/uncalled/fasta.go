package uncalled

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
)

// Contig is one reference sequence, packed as 2-bit base codes
type Contig struct {
	Name string
	Seq  []uint8
}

// LoadFasta reads a (possibly gzipped) multi-FASTA reference into
// packed contigs. Ambiguity codes are packed as A
func LoadFasta(filename string) ([]Contig, error) {
	fin, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fin.Close()

	var r io.Reader = fin
	if strings.HasSuffix(filename, ".gz") {
		gz, err := gzip.NewReader(fin)
		if err != nil {
			return nil, fmt.Errorf("reference %s: %v", filename, err)
		}
		defer gz.Close()
		r = gz
	}

	in := fasta.NewReader(r, linear.NewSeq("", nil, alphabet.DNA))

	var contigs []Contig
	for {
		s, err := in.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reference %s: %v", filename, err)
		}

		l := s.(*linear.Seq)
		packed := make([]uint8, len(l.Seq))
		for i, c := range l.Seq {
			b, err := baseIndex(byte(c))
			if err != nil {
				b = 0
			}
			packed[i] = b
		}
		contigs = append(contigs, Contig{Name: l.Name(), Seq: packed})
	}

	if len(contigs) == 0 {
		return nil, fmt.Errorf("reference %s: no sequences found", filename)
	}
	return contigs, nil
}

// revComp returns the reverse complement of a packed sequence
func revComp(seq []uint8) []uint8 {
	out := make([]uint8, len(seq))
	for i, b := range seq {
		out[len(seq)-1-i] = 3 - b
	}
	return out
}
