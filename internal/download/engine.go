package download

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/hsget/hsget/internal/utils"
)

// Engine runs one segmented download: probe, partition, bounded concurrent
// fetch, reassembly and persistence.
type Engine struct {
	cfg    Config
	client utils.HTTPDoer
	sink   ProgressSink
	info   ResourceInfo
	probed bool
}

func New(cfg Config, client utils.HTTPDoer, sink ProgressSink) *Engine {
	cfg.applyDefaults()
	if sink == nil {
		sink = NopSink{}
	}
	return &Engine{cfg: cfg, client: client, sink: sink}
}

// SetOutputPath sets the destination after construction, for callers that
// derive the file name from the probe result.
func (e *Engine) SetOutputPath(path string) {
	e.cfg.OutputPath = path
}

// Download performs the whole download and writes the result to
// cfg.OutputPath. Any returned error is fatal; no partial file is left at
// the destination.
func (e *Engine) Download(ctx context.Context) error {
	log := utils.GetLogger("download").With().Str("url", e.cfg.URL).Logger()
	info, err := e.Probe(ctx)
	if err != nil {
		return err
	}
	chunks := Partition(info.Size, info.AcceptRanges, e.cfg.BlockCount, e.cfg.BlockSize)
	log.Debug().Int64("size", info.Size).Bool("acceptRanges", info.AcceptRanges).
		Int("chunks", len(chunks)).Int("admissionLimit", e.cfg.AdmissionLimit).
		Msg("Starting segmented download")

	e.sink.Begin(info.Size)
	defer e.sink.Finish()
	segments, err := e.fanOut(ctx, chunks)
	if err != nil {
		return err
	}
	data := Assemble(segments)
	if info.Size > 0 && int64(len(data)) != info.Size {
		return &WriteError{Path: e.cfg.OutputPath, Err: errSizeMismatch(info.Size, int64(len(data)))}
	}
	if err := WriteFile(e.cfg.OutputPath, data); err != nil {
		return err
	}
	log.Debug().Str("path", e.cfg.OutputPath).Int("bytes", len(data)).Msg("Download complete")
	return nil
}

// fanOut schedules every chunk on its own goroutine, gated by the admission
// limiter. The first exhausted chunk flips the abort flag: siblings already
// in flight are allowed to finish, but nothing new is admitted and the
// first fatal error is returned after the join.
func (e *Engine) fanOut(ctx context.Context, chunks []Chunk) ([]Segment, error) {
	limiter := newLimiter(e.cfg.AdmissionLimit)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		segments []Segment
		fatal    error
		aborted  atomic.Bool
	)
	fail := func(err error) {
		aborted.Store(true)
		mu.Lock()
		if fatal == nil {
			fatal = err
		}
		mu.Unlock()
	}
	for _, chunk := range chunks {
		wg.Add(1)
		go func(chunk Chunk) {
			defer wg.Done()
			if aborted.Load() {
				return
			}
			if err := limiter.acquire(ctx); err != nil {
				fail(err)
				return
			}
			defer limiter.release()
			if aborted.Load() {
				return
			}
			segment, err := e.fetchChunk(ctx, chunk)
			if err != nil {
				fail(err)
				return
			}
			mu.Lock()
			segments = append(segments, segment)
			mu.Unlock()
		}(chunk)
	}
	wg.Wait()
	if fatal != nil {
		return nil, fatal
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].Index < segments[j].Index })
	return segments, nil
}

// limiter is a counting admission gate: at most cap(limiter) fetches hold a
// slot at any time.
type limiter chan struct{}

func newLimiter(n int) limiter {
	return make(limiter, n)
}

func (l limiter) acquire(ctx context.Context) error {
	select {
	case l <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l limiter) release() {
	<-l
}
