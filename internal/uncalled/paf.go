package uncalled

import (
	"fmt"
	"strings"
)

// ReadLoc is the mapping outcome for one read, rendered as one PAF
// line. Unmapped reads emit the conventional '*' columns
type ReadLoc struct {
	ReadID  string
	Channel uint16

	mapped bool
	fwd    bool

	rdSt, rdEn, rdLen uint64

	rfName            string
	rfSt, rfEn, rfLen uint64

	matches uint16

	timeMS float32
}

// NewReadLoc returns an unmapped location for a read
func NewReadLoc(id string, channel uint16) ReadLoc {
	return ReadLoc{ReadID: id, Channel: channel}
}

// SetMapped records the mapping coordinates for a successful read
func (l *ReadLoc) SetMapped(rdSt, rdEn, rdLen uint64, rfName string, rfSt, rfEn, rfLen uint64, matches uint16, fwd bool) {
	l.mapped = true
	l.fwd = fwd
	l.rdSt = rdSt
	l.rdEn = rdEn
	l.rdLen = rdLen
	l.rfName = rfName
	l.rfSt = rfSt
	l.rfEn = rfEn
	l.rfLen = rfLen
	l.matches = matches
}

// SetReadLen records the estimated read length for unmapped output
func (l *ReadLoc) SetReadLen(rdLen uint64) {
	if !l.mapped {
		l.rdLen = rdLen
	}
}

// SetTime records how long mapping took, in milliseconds
func (l *ReadLoc) SetTime(ms float32) {
	l.timeMS = ms
}

// IsMapped is true when mapping succeeded
func (l *ReadLoc) IsMapped() bool {
	return l.mapped
}

// RefName returns the mapped contig name, empty when unmapped
func (l *ReadLoc) RefName() string {
	return l.rfName
}

// RefStart returns the mapped contig offset
func (l *ReadLoc) RefStart() uint64 {
	return l.rfSt
}

// Fwd reports the mapped strand
func (l *ReadLoc) Fwd() bool {
	return l.fwd
}

// PAF renders the location as a PAF line with mt (map time, ms) and
// ch (channel) tags
func (l *ReadLoc) PAF() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\t%d", l.ReadID, l.rdLen)
	if l.mapped {
		strand := "+"
		if !l.fwd {
			strand = "-"
		}
		blockLen := l.rfEn - l.rfSt
		fmt.Fprintf(&b, "\t%d\t%d\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t255",
			l.rdSt, l.rdEn, strand, l.rfName, l.rfLen, l.rfSt, l.rfEn, l.matches, blockLen)
	} else {
		fmt.Fprintf(&b, "\t*\t*\t*\t*\t*\t*\t*\t*\t*\t0")
	}
	fmt.Fprintf(&b, "\tmt:f:%.2f\tch:i:%d", l.timeMS, l.Channel)

	return b.String()
}
