package realtime

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/agent001/UNCALLED/config"
	"github.com/agent001/UNCALLED/internal/uncalled"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
)

// Server drives one mapper per channel over a chunk stream. Mappers
// share the model, index and config read-only; each goroutine owns
// its mapper and buffers outright
type Server struct {
	conf    *config.Config
	model   *uncalled.Model
	fmi     *uncalled.FMIndex
	logger  log.Logger
	metrics *Metrics
}

// New creates a realtime server and registers its metrics.
func New(conf *config.Config, model *uncalled.Model, fmi *uncalled.FMIndex, logger log.Logger, reg prometheus.Registerer) *Server {
	return &Server{
		conf:    conf,
		model:   model,
		fmi:     fmi,
		logger:  logger,
		metrics: NewMetrics(reg),
	}
}

// Run consumes the chunk source until it is exhausted or the context
// is cancelled, writing one PAF line per finished read to out. The
// eject decision is appended as a ur:Z tag: in deplete mode mapped
// reads are ejected, in enrich mode unmapped ones
func (s *Server) Run(ctx context.Context, src ChunkSource, out io.Writer) error {
	nch := s.conf.Realtime.Channels
	if nch < 1 {
		nch = 1
	}

	ins := make([]chan uncalled.Chunk, nch)
	results := make(chan uncalled.ReadLoc, nch)

	var wg sync.WaitGroup
	for ch := 0; ch < nch; ch++ {
		mapper, err := uncalled.NewMapper(s.conf, s.model, s.fmi)
		if err != nil {
			return fmt.Errorf("channel %d: %w", ch, err)
		}
		ins[ch] = make(chan uncalled.Chunk, 4)
		wg.Add(1)
		go s.runChannel(ctx, mapper, ins[ch], results, &wg)
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for loc := range results {
			if loc.IsMapped() {
				s.metrics.ReadsMapped.Inc()
			} else {
				s.metrics.ReadsUnmapped.WithLabelValues("exhausted").Inc()
			}
			fmt.Fprintf(out, "%s\tur:Z:%s\n", loc.PAF(), s.decision(loc))
		}
	}()

	level.Info(s.logger).Log("msg", "realtime mapping started", "channels", nch, "mode", s.conf.Realtime.Mode)

feed:
	for {
		c, ok := src.Next()
		if !ok {
			break
		}
		select {
		case <-ctx.Done():
			break feed
		case ins[int(c.Channel)%nch] <- c:
		}
	}

	for _, in := range ins {
		close(in)
	}
	wg.Wait()
	close(results)
	<-writerDone

	level.Info(s.logger).Log("msg", "realtime mapping finished")
	return ctx.Err()
}

// decision names what the sequencer should do with the pore
func (s *Server) decision(loc uncalled.ReadLoc) string {
	eject := loc.IsMapped()
	if s.conf.Realtime.Mode == "enrich" {
		eject = !eject
	}
	if eject {
		return "eject"
	}
	return "keep"
}

func (s *Server) runChannel(ctx context.Context, m *uncalled.Mapper, in <-chan uncalled.Chunk, results chan<- uncalled.ReadLoc, wg *sync.WaitGroup) {
	defer wg.Done()

	var doneNumber uint32
	haveDone := false

	for c := range in {
		if ctx.Err() != nil {
			m.RequestReset()
		}

		// a decided read keeps streaming until the sequencer acts on
		// the eject; its remaining chunks carry no new information
		if haveDone && c.Number == doneNumber {
			continue
		}

		if m.GetState() == uncalled.StateMapping && m.ReadNumber() == c.Number {
			if done := m.SwapChunk(&c); !done && !m.Finished() {
				level.Warn(s.logger).Log("msg", "chunk dropped", "chunk", c.ID, "channel", c.Channel)
				continue
			}
		} else {
			if m.GetState() == uncalled.StateMapping {
				s.metrics.ReadsUnmapped.WithLabelValues("lost").Inc()
			} else if m.GetState() == uncalled.StateInactive {
				s.metrics.ActiveChannels.Inc()
			}
			m.NewRead(&c)
		}

		nevents := m.ProcessChunk()
		s.metrics.ChunksProcessed.Inc()
		s.metrics.EventsProcessed.Add(float64(nevents))

		for !m.Finished() && m.EventsReady() {
			if m.MapChunk() {
				break
			}
		}

		if m.Finished() {
			doneNumber = m.ReadNumber()
			haveDone = true
			results <- m.PopLoc()
			s.metrics.ActiveChannels.Dec()
		}
	}

	// the stream ended; whatever is still buffered is all this read
	// will ever get
	if m.GetState() == uncalled.StateMapping {
		m.FinishRead()
		for !m.Finished() {
			if m.MapChunk() {
				break
			}
		}
		results <- m.PopLoc()
		s.metrics.ActiveChannels.Dec()
	}
}
