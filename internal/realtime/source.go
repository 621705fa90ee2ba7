// Package realtime runs one mapper per sequencer channel over a
// stream of signal chunks and emits accept/eject decisions as the
// evidence arrives
package realtime

import (
	"fmt"

	"github.com/agent001/UNCALLED/internal/uncalled"
	"github.com/google/uuid"
)

// ChunkSource yields signal chunks in delivery order. Chunks for one
// channel arrive in read order; chunks of different channels
// interleave arbitrarily
type ChunkSource interface {
	// Next returns the next chunk, or ok=false when the stream ends
	Next() (uncalled.Chunk, bool)
}

// FileSource replays a raw signal dump as a live run: reads are dealt
// round-robin onto channels, sliced into fixed-size chunks, and
// delivered breadth-first so every channel makes progress each cycle,
// the way chunks arrive from a real sequencer
type FileSource struct {
	chunks []uncalled.Chunk
	pos    int
}

// NewFileSource deals the reads onto channels and slices their signal
// into chunkLen-sample chunks. Reads without an id are assigned one
func NewFileSource(reads []uncalled.SignalRead, channels, chunkLen int) *FileSource {
	if channels < 1 {
		channels = 1
	}
	if chunkLen < 1 {
		chunkLen = 4000
	}

	type slot struct {
		read    uncalled.SignalRead
		channel uint16
		number  uint32
		first   int // round of the read's first chunk on its channel
	}

	// a channel plays its reads back to back: each read starts in the
	// round after the previous read on that channel ends
	next := make([]int, channels)
	slots := make([]slot, len(reads))
	for i, r := range reads {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		slots[i] = slot{
			read:    r,
			channel: uint16(i % channels),
			number:  uint32(i / channels),
			first:   next[i%channels],
		}
		next[i%channels] += (len(r.Samples) + chunkLen - 1) / chunkLen
	}

	src := &FileSource{}
	for round := 0; ; round++ {
		emitted := false
		for _, s := range slots {
			st := (round - s.first) * chunkLen
			if st < 0 || st >= len(s.read.Samples) {
				continue
			}
			en := st + chunkLen
			if en > len(s.read.Samples) {
				en = len(s.read.Samples)
			}
			src.chunks = append(src.chunks, uncalled.Chunk{
				ID:      fmt.Sprintf("%s:%d", s.read.ID, round-s.first),
				Channel: s.channel,
				Number:  s.number,
				Signal:  s.read.Samples[st:en],
			})
			emitted = true
		}
		if !emitted {
			break
		}
	}
	return src
}

// Next implements ChunkSource
func (s *FileSource) Next() (uncalled.Chunk, bool) {
	if s.pos >= len(s.chunks) {
		return uncalled.Chunk{}, false
	}
	c := s.chunks[s.pos]
	s.pos++
	return c, true
}
