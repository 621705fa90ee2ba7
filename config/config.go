// Package config is for app wide settings that are unmarshalled
// from Viper (see: /cmd)
package config

import (
	"log"

	"github.com/spf13/viper"
)

// IndexConfig is settings for building and loading the reference index
type IndexConfig struct {
	// the number of suffix-array slots per stored sample
	SASample int `mapstructure:"sa-sample"`

	// the number of BWT positions per stored occurrence checkpoint
	OccSample int `mapstructure:"occ-sample"`
}

// EventConfig is settings for raw-signal event detection
type EventConfig struct {
	// short t-stat window length, in samples
	Window1 int `mapstructure:"window-length1"`

	// long t-stat window length, in samples
	Window2 int `mapstructure:"window-length2"`

	// short window peak threshold
	Threshold1 float32 `mapstructure:"threshold1"`

	// long window peak threshold
	Threshold2 float32 `mapstructure:"threshold2"`

	// required height of a t-stat peak above its neighborhood
	PeakHeight float32 `mapstructure:"peak-height"`
}

// EvprWindow is one step of the event-probability threshold ladder:
// paths whose FM-range spans at least MinLength slots must emit with
// log-probability at least Thresh to survive
type EvprWindow struct {
	MinLength uint64  `mapstructure:"min-length"`
	Thresh    float32 `mapstructure:"thresh"`
}

// MapperConfig is settings for the branching seed-search mapper
type MapperConfig struct {
	// the number of events a seed must span before it can be reported
	SeedLen int `mapstructure:"seed-len"`

	// capacity of each path buffer generation
	MaxPaths int `mapstructure:"max-paths"`

	// maximum run of consecutive STAY events on one path
	MaxConsecStay int `mapstructure:"max-consec-stay"`

	// maximum fraction of a seed's events that may be STAYs
	MaxStayFrac float32 `mapstructure:"max-stay-frac"`

	// minimum mean per-event log-probability of a reported seed
	MinSeedProb float32 `mapstructure:"min-seed-prob"`

	// dead-end paths may be reported from FM-ranges spanning up to
	// this many reference copies
	MaxRepCopy int `mapstructure:"max-rep-copy"`

	// minimum match length of a dead-end repeat seed
	MinRepLen int `mapstructure:"min-rep-len"`

	// give up on a read after this many events
	MaxEventsProc uint32 `mapstructure:"max-events-proc"`

	// give up on a read after this many chunks (0 = unlimited)
	MaxChunksProc uint32 `mapstructure:"max-chunks-proc"`

	// wall budget per mapped event, in milliseconds
	EvtTimeout float32 `mapstructure:"evt-timeout"`

	// capacity of the normalizer's event ring
	EvtBufferLen int `mapstructure:"evt-buffer-len"`

	// events drained per map_chunk slice
	MaxChunkEvents uint16 `mapstructure:"max-chunk-events"`

	// probability threshold ladder, widest ranges first
	EvprWindows []EvprWindow `mapstructure:"evpr-windows"`

	// thresholds the seed tracker needs before calling a mapping
	MinMeanConf float32 `mapstructure:"min-mean-conf"`
	MinTopConf  float32 `mapstructure:"min-top-conf"`
	MinAlnLen   int     `mapstructure:"min-aln-len"`
}

// RealtimeConfig is settings for the realtime daemon and for
// translating event coordinates back into sample/base estimates
type RealtimeConfig struct {
	// number of sequencer channels to run mappers for
	Channels int `mapstructure:"channels"`

	// raw samples per chunk
	ChunkLen int `mapstructure:"chunk-len"`

	// sequencer sampling rate, in samples per second
	SampleRate float32 `mapstructure:"sample-rate"`

	// expected translocation speed, in bases per second
	BasesPerSec float32 `mapstructure:"bases-per-sec"`

	// address to serve prometheus metrics on ("" = disabled)
	MetricsAddr string `mapstructure:"metrics-addr"`

	// "deplete" ejects mapped reads, "enrich" ejects unmapped ones
	Mode string `mapstructure:"mode"`
}

// Config is the root-level settings struct and is a mix of settings
// available in a settings file and those set on the command line
type Config struct {
	Index    IndexConfig    `mapstructure:"index"`
	Event    EventConfig    `mapstructure:"event"`
	Mapper   MapperConfig   `mapstructure:"mapper"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
}

// New returns a new Config struct populated by Viper settings (either
// from a local settings file and/or command line arguments), with
// defaults filled in for anything left unset
func New() *Config {
	c := Default()

	if err := viper.Unmarshal(c); err != nil {
		log.Fatalf("unable to decode settings into struct: %v", err)
	}

	if c.Mapper.SeedLen < 2 || c.Mapper.SeedLen > 32 {
		log.Fatalf("seed-len must be between 2 and 32, got %d", c.Mapper.SeedLen)
	}

	return c
}

// Default returns the built-in settings, tuned for R9.4 DNA at
// 450 bases per second
func Default() *Config {
	return &Config{
		Index: IndexConfig{
			SASample:  1,
			OccSample: 128,
		},
		Event: EventConfig{
			Window1:    3,
			Window2:    6,
			Threshold1: 1.4,
			Threshold2: 9.0,
			PeakHeight: 0.2,
		},
		Mapper: MapperConfig{
			SeedLen:        22,
			MaxPaths:       10000,
			MaxConsecStay:  8,
			MaxStayFrac:    0.5,
			MinSeedProb:    -3.75,
			MaxRepCopy:     50,
			MinRepLen:      18,
			MaxEventsProc:  30000,
			MaxChunksProc:  10,
			EvtTimeout:     5.0,
			EvtBufferLen:   1024,
			MaxChunkEvents: 512,
			EvprWindows: []EvprWindow{
				{MinLength: 100, Thresh: -3.75},
				{MinLength: 5, Thresh: -5.25},
				{MinLength: 1, Thresh: -5.45},
			},
			MinMeanConf: 6.67,
			MinTopConf:  2.0,
			MinAlnLen:   25,
		},
		Realtime: RealtimeConfig{
			Channels:    512,
			ChunkLen:    4000,
			SampleRate:  4000.0,
			BasesPerSec: 450.0,
			MetricsAddr: "",
			Mode:        "deplete",
		},
	}
}

// ProbThresh returns the emission log-probability floor for a path
// whose FM-range spans rangeLen suffix-array slots. Wide ranges are
// cheap to extend and expensive to keep, so they must clear a higher
// floor than nearly-unique ranges
func (c *Config) ProbThresh(rangeLen uint64) float32 {
	for _, w := range c.Mapper.EvprWindows {
		if rangeLen >= w.MinLength {
			return w.Thresh
		}
	}
	if n := len(c.Mapper.EvprWindows); n > 0 {
		return c.Mapper.EvprWindows[n-1].Thresh
	}
	return c.Mapper.MinSeedProb
}

// SourceProb is the emission floor for injecting fresh source paths.
// Sources start with a k-mer's full FM-range, so they clear the
// widest-range floor
func (c *Config) SourceProb() float32 {
	if len(c.Mapper.EvprWindows) > 0 {
		return c.Mapper.EvprWindows[0].Thresh
	}
	return c.Mapper.MinSeedProb
}

// MaxEvents returns how many events the next map_chunk slice may
// drain, leaving no slack past the per-read event budget
func (c *Config) MaxEvents(eventI uint32) uint16 {
	n := uint32(c.Mapper.MaxChunkEvents)
	if eventI+n > c.Mapper.MaxEventsProc {
		if eventI >= c.Mapper.MaxEventsProc {
			return 1
		}
		return uint16(c.Mapper.MaxEventsProc - eventI)
	}
	return c.Mapper.MaxChunkEvents
}
