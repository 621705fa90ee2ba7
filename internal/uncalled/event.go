package uncalled

import (
	"math"

	"github.com/agent001/UNCALLED/config"
)

// peakDetector finds local maxima of a t-stat series that clear a
// threshold: once the series rises above the threshold it follows the
// running maximum, and fires when the series has dropped peakHeight
// below it
type peakDetector struct {
	threshold  float32
	peakHeight float32

	climbing bool
	peakVal  float32
}

func (d *peakDetector) push(tstat float32) bool {
	if !d.climbing {
		if tstat < d.threshold {
			return false
		}
		d.climbing = true
		d.peakVal = tstat
		return false
	}
	if tstat > d.peakVal {
		d.peakVal = tstat
		return false
	}
	if tstat < d.peakVal-d.peakHeight || tstat < d.threshold {
		d.climbing = false
		return true
	}
	return false
}

func (d *peakDetector) reset() {
	d.climbing = false
	d.peakVal = 0
}

// EventDetector segments a raw current trace into events. A short and
// a long two-sided window slide over the samples; each computes the
// Student t-statistic between the window halves, and a detected peak
// in either series marks an event boundary. One event mean is emitted
// per boundary
type EventDetector struct {
	w1, w2 int

	short peakDetector
	long  peakDetector

	buf []float32 // last 2*w2 samples
	n   int

	evtSum   float64
	evtSumsq float64
	evtLen   int
	mean     float32
}

// NewEventDetector builds a detector from the event settings
func NewEventDetector(conf *config.EventConfig) *EventDetector {
	d := &EventDetector{
		w1:    conf.Window1,
		w2:    conf.Window2,
		short: peakDetector{threshold: conf.Threshold1, peakHeight: conf.PeakHeight},
		long:  peakDetector{threshold: conf.Threshold2, peakHeight: conf.PeakHeight},
	}
	d.buf = make([]float32, 2*d.w2)
	return d
}

// Reset discards all buffered samples and any partial event
func (d *EventDetector) Reset() {
	d.n = 0
	d.evtSum = 0
	d.evtSumsq = 0
	d.evtLen = 0
	d.mean = 0
	d.short.reset()
	d.long.reset()
}

// tstat is the two-sample t-statistic between the w samples before
// and after the buffer midpoint
func (d *EventDetector) tstat(w int) float32 {
	mid := d.w2
	var sumA, sumB, sqA, sqB float64
	for i := mid - w; i < mid; i++ {
		s := float64(d.buf[i])
		sumA += s
		sqA += s * s
	}
	for i := mid; i < mid+w; i++ {
		s := float64(d.buf[i])
		sumB += s
		sqB += s * s
	}
	fw := float64(w)
	meanA, meanB := sumA/fw, sumB/fw
	varA := sqA/fw - meanA*meanA
	varB := sqB/fw - meanB*meanB
	pooled := (varA + varB) / fw
	if pooled < 1e-9 {
		pooled = 1e-9
	}
	return float32(math.Abs(meanA-meanB) / math.Sqrt(pooled))
}

// AddSample pushes one raw sample, returning true when it completed
// an event. The finished event's mean is then available via GetMean
func (d *EventDetector) AddSample(s float32) bool {
	if d.n == len(d.buf) {
		copy(d.buf, d.buf[1:])
		d.n--
	}
	d.buf[d.n] = s
	d.n++

	d.evtSum += float64(s)
	d.evtSumsq += float64(s) * float64(s)
	d.evtLen++

	if d.n < len(d.buf) {
		return false
	}

	boundary := d.short.push(d.tstat(d.w1))
	if d.long.push(d.tstat(d.w2)) {
		boundary = true
	}

	// the peak was one sample back, with the boundary at the buffer
	// midpoint: the newest w2+1 samples already belong to the next event
	carry := d.buf[d.w2-1:]
	var carrySum, carrySumsq float64
	for _, x := range carry {
		carrySum += float64(x)
		carrySumsq += float64(x) * float64(x)
	}

	// suppress boundaries until the event spans the short window,
	// otherwise noise splits events into single samples
	if !boundary || d.evtLen-len(carry) < d.w1 {
		return false
	}

	d.mean = float32((d.evtSum - carrySum) / float64(d.evtLen-len(carry)))
	d.evtSum = carrySum
	d.evtSumsq = carrySumsq
	d.evtLen = len(carry)
	return true
}

// GetMean returns the mean current of the last completed event
func (d *EventDetector) GetMean() float32 {
	return d.mean
}
