package uncalled

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/cespare/xxhash"
	"github.com/klauspost/compress/zstd"
)

// index file layout: magic, header fields, contig table, then the
// FM-index arrays, all little-endian inside a zstd frame
var indexMagic = [8]byte{'U', 'N', 'C', 'I', 'D', 'X', 0, 2}

// hashReference fingerprints the packed reference. The fingerprint is
// stored in the index and compared by CheckReference; LoadFMIndex does
// not check it
func hashReference(packed []uint8) uint64 {
	return xxhash.Sum64(packed)
}

// Save writes the index to path as a zstd-compressed binary
func (fmi *FMIndex) Save(path string) error {
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fp.Close()

	zw, err := zstd.NewWriter(fp, zstd.WithEncoderConcurrency(1), zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("write index %s: %v", path, err)
	}
	w := bufio.NewWriterSize(zw, 1<<20)

	write := func(v interface{}) {
		if err == nil {
			err = binary.Write(w, binary.LittleEndian, v)
		}
	}

	write(indexMagic)
	write(fmi.k)
	write(uint32(fmi.occSample))
	write(fmi.size)
	write(fmi.fwdLen)
	write(fmi.refHash)

	write(uint32(len(fmi.contigNames)))
	for i, name := range fmi.contigNames {
		write(uint32(len(name)))
		write([]byte(name))
		write(fmi.contigOffsets[i])
		write(fmi.contigLens[i])
	}

	write(fmi.counts)
	write(uint64(len(fmi.bwt)))
	write(fmi.bwt)
	write(uint64(len(fmi.occ)))
	for i := range fmi.occ {
		write(fmi.occ[i])
	}
	write(uint64(len(fmi.sa)))
	write(fmi.sa)
	write(uint64(len(fmi.kmerRanges)))
	for _, r := range fmi.kmerRanges {
		write(r.Start)
		write(r.End)
	}
	if err != nil {
		return fmt.Errorf("write index %s: %v", path, err)
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("write index %s: %v", path, err)
	}
	return zw.Close()
}

// LoadFMIndex reads an index written by Save
func LoadFMIndex(path string) (*FMIndex, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()

	zr, err := zstd.NewReader(fp, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("read index %s: %v", path, err)
	}
	defer zr.Close()
	r := bufio.NewReaderSize(zr, 1<<20)

	read := func(v interface{}) {
		if err == nil {
			err = binary.Read(r, binary.LittleEndian, v)
		}
	}

	var magic [8]byte
	read(&magic)
	if err == nil && magic != indexMagic {
		return nil, fmt.Errorf("read index %s: not an index file (or unsupported version)", path)
	}

	fmi := &FMIndex{}
	var occSample uint32
	read(&fmi.k)
	read(&occSample)
	read(&fmi.size)
	read(&fmi.fwdLen)
	read(&fmi.refHash)
	fmi.occSample = int(occSample)

	var nContigs uint32
	read(&nContigs)
	for i := uint32(0); i < nContigs && err == nil; i++ {
		var nameLen uint32
		read(&nameLen)
		name := make([]byte, nameLen)
		read(name)
		var offset, clen uint64
		read(&offset)
		read(&clen)
		fmi.contigNames = append(fmi.contigNames, string(name))
		fmi.contigOffsets = append(fmi.contigOffsets, offset)
		fmi.contigLens = append(fmi.contigLens, clen)
	}

	read(&fmi.counts)

	var n uint64
	read(&n)
	fmi.bwt = make([]uint8, n)
	read(fmi.bwt)

	read(&n)
	fmi.occ = make([][nSymbols]uint64, n)
	for i := range fmi.occ {
		read(&fmi.occ[i])
	}

	read(&n)
	fmi.sa = make([]uint64, n)
	read(fmi.sa)

	read(&n)
	fmi.kmerRanges = make([]Range, n)
	for i := range fmi.kmerRanges {
		read(&fmi.kmerRanges[i].Start)
		read(&fmi.kmerRanges[i].End)
	}

	if err != nil {
		return nil, fmt.Errorf("read index %s: %v", path, err)
	}
	return fmi, nil
}

// CheckReference verifies that the index was built from the given
// contigs by comparing reference fingerprints
func (fmi *FMIndex) CheckReference(contigs []Contig) error {
	var fwd []uint8
	for _, c := range contigs {
		fwd = append(fwd, c.Seq...)
	}
	full := append(fwd, revComp(fwd)...)
	if h := hashReference(full); h != fmi.refHash {
		return fmt.Errorf("index fingerprint %016x does not match reference %016x; rebuild the index", fmi.refHash, h)
	}
	return nil
}
