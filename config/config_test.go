// Package config is for app wide settings that are unmarshalled
// from Viper (see: /cmd)
package config

import (
	"testing"
)

func TestConfig_ProbThresh(t *testing.T) {
	c := Default()
	c.Mapper.EvprWindows = []EvprWindow{
		{MinLength: 100, Thresh: -3.75},
		{MinLength: 5, Thresh: -5.25},
		{MinLength: 1, Thresh: -5.45},
	}

	tests := []struct {
		name     string
		rangeLen uint64
		want     float32
	}{
		{
			"wide range hits the strict floor",
			250,
			-3.75,
		},
		{
			"boundary of the wide window",
			100,
			-3.75,
		},
		{
			"mid window",
			12,
			-5.25,
		},
		{
			"unique range gets the loose floor",
			1,
			-5.45,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.ProbThresh(tt.rangeLen); got != tt.want {
				t.Errorf("ProbThresh(%d) = %v, want %v", tt.rangeLen, got, tt.want)
			}
		})
	}
}

func TestConfig_SourceProb(t *testing.T) {
	c := Default()

	if got, want := c.SourceProb(), c.Mapper.EvprWindows[0].Thresh; got != want {
		t.Errorf("SourceProb() = %v, want the widest-window floor %v", got, want)
	}

	c.Mapper.EvprWindows = nil
	if got := c.SourceProb(); got != c.Mapper.MinSeedProb {
		t.Errorf("SourceProb() without a ladder = %v, want MinSeedProb", got)
	}
}

func TestConfig_MaxEvents(t *testing.T) {
	c := Default()
	c.Mapper.MaxChunkEvents = 100
	c.Mapper.MaxEventsProc = 450

	tests := []struct {
		name   string
		eventI uint32
		want   uint16
	}{
		{"fresh read gets a full slice", 0, 100},
		{"mid read", 300, 100},
		{"slice clipped at the budget", 400, 50},
		{"budget exhausted", 450, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.MaxEvents(tt.eventI); got != tt.want {
				t.Errorf("MaxEvents(%d) = %d, want %d", tt.eventI, got, tt.want)
			}
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	c := Default()

	if c.Mapper.SeedLen < 2 || c.Mapper.SeedLen > 32 {
		t.Errorf("default seed length %d outside the packable window", c.Mapper.SeedLen)
	}
	if c.Mapper.MaxPaths <= 0 {
		t.Error("default max paths must be positive")
	}
	if len(c.Mapper.EvprWindows) == 0 {
		t.Error("default threshold ladder must not be empty")
	}
	for i := 1; i < len(c.Mapper.EvprWindows); i++ {
		if c.Mapper.EvprWindows[i].MinLength >= c.Mapper.EvprWindows[i-1].MinLength {
			t.Error("threshold ladder must be sorted widest first")
		}
	}
	if c.Realtime.Mode != "deplete" && c.Realtime.Mode != "enrich" {
		t.Errorf("default mode %q is not a known mode", c.Realtime.Mode)
	}
}
