package uncalled

// Chunk is one slice of raw signal from a sequencing channel
type Chunk struct {
	ID      string
	Channel uint16
	Number  uint32 // read sequence number on the channel
	Signal  []float32
}

// Clear drops the chunk's signal
func (c *Chunk) Clear() {
	c.Signal = nil
}

// ReadBuffer accumulates the chunks of the read currently being
// mapped on a channel
type ReadBuffer struct {
	ID      string
	Channel uint16
	Number  uint32

	chunk          []float32
	chunkProcessed bool
	numChunks      uint32
	rawLen         uint32

	Loc ReadLoc
}

// NewReadBuffer starts a read from its first chunk
func NewReadBuffer(c *Chunk) ReadBuffer {
	r := ReadBuffer{
		ID:             c.ID,
		Channel:        c.Channel,
		Number:         c.Number,
		chunkProcessed: true,
	}
	r.Loc = NewReadLoc(c.ID, c.Channel)
	r.AddChunk(c)
	return r
}

// AddChunk queues the next chunk of this read. It fails when the
// previous chunk has not been consumed yet or the chunk belongs to a
// different read
func (r *ReadBuffer) AddChunk(c *Chunk) bool {
	if !r.chunkProcessed || c.Number != r.Number {
		return false
	}
	r.chunk = append(r.chunk[:0], c.Signal...)
	r.chunkProcessed = false
	r.numChunks++
	r.rawLen += uint32(len(c.Signal))
	return true
}

// ChunkProcessed is true once the buffered chunk's samples have all
// been fed to the event detector
func (r *ReadBuffer) ChunkProcessed() bool {
	return r.chunkProcessed
}

// RawLen is the total number of raw samples received for this read
func (r *ReadBuffer) RawLen() uint32 {
	return r.rawLen
}
