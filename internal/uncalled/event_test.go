package uncalled

import (
	"testing"

	"github.com/agent001/UNCALLED/config"
)

func testDetector() *EventDetector {
	conf := config.Default()
	return NewEventDetector(&conf.Event)
}

// a three-level staircase has two steps, and each step should close an
// event with a mean near the level before it
func Test_EventDetection(t *testing.T) {
	d := testDetector()

	var signal []float32
	for _, level := range []float32{80, 100, 60} {
		for i := 0; i < 20; i++ {
			signal = append(signal, level)
		}
	}

	var means []float32
	for _, s := range signal {
		if d.AddSample(s) {
			means = append(means, d.GetMean())
		}
	}

	if len(means) < 2 {
		t.Fatalf("expected at least 2 events from 3 levels, got %d", len(means))
	}
	for _, mean := range means {
		if mean < 55 || mean > 105 {
			t.Errorf("event mean %v outside signal range", mean)
		}
	}
}

func Test_EventDetectorFlat(t *testing.T) {
	d := testDetector()

	for i := 0; i < 200; i++ {
		if d.AddSample(90) {
			t.Fatal("flat signal should never produce an event")
		}
	}
}

func Test_EventDetectorReset(t *testing.T) {
	d := testDetector()

	for i := 0; i < 20; i++ {
		d.AddSample(80)
	}
	d.Reset()

	// after a reset a flat continuation must not fire on the stale
	// boundary
	for i := 0; i < 50; i++ {
		if d.AddSample(80) {
			t.Fatal("reset detector fired on a flat signal")
		}
	}
}
