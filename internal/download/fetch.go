package download

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/hsget/hsget/internal/utils"
)

// fetchChunk downloads one chunk with per-attempt retry. Transport errors,
// disallowed status codes and short reads are all retried the same way;
// only after the retry budget is spent does the failure surface as an
// ExhaustedError, which aborts the whole download.
func (e *Engine) fetchChunk(ctx context.Context, chunk Chunk) (Segment, error) {
	log := utils.GetLogger("fetch").With().Int("chunkId", chunk.Index).Logger()
	size := chunk.Span()
	if !chunk.Ranged {
		size = e.info.Size
	}
	e.sink.StartSegment(chunk.Index, size)

	var lastErr error
	for attempt := 1; attempt <= e.cfg.Retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := e.backoff(ctx); err != nil {
				lastErr = err
				break
			}
		}
		data, err := e.fetchOnce(ctx, chunk)
		if err == nil {
			e.sink.EndSegment(chunk.Index)
			return Segment{Index: chunk.Index, Data: data}, nil
		}
		lastErr = err
		log.Warn().Err(err).Str("range", chunk.RangeHeader()).
			Int("attempt", attempt).Int("maxAttempts", e.cfg.Retry.MaxAttempts).
			Msg("Chunk download failed")
		if ctx.Err() != nil {
			break
		}
	}
	return Segment{}, &ExhaustedError{Chunk: chunk, Attempts: e.cfg.Retry.MaxAttempts, Err: lastErr}
}

// fetchOnce performs a single streamed attempt. On any failure the bytes
// already counted toward progress are rolled back so a retry starts clean.
func (e *Engine) fetchOnce(ctx context.Context, chunk Chunk) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, e.cfg.Method, e.cfg.URL, e.requestBody())
	if err != nil {
		return nil, err
	}
	for k, v := range e.cfg.Headers {
		req.Header.Set(k, v)
	}
	if chunk.Ranged {
		req.Header.Set("Range", chunk.RangeHeader())
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if !e.cfg.statusAllowed(resp.StatusCode) {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	data := make([]byte, 0, chunk.Span())
	buffer := make([]byte, utils.DefaultBufferSize)
	var received int64
	for {
		bytesRead, err := resp.Body.Read(buffer)
		if bytesRead > 0 {
			data = append(data, buffer[:bytesRead]...)
			received += int64(bytesRead)
			e.sink.Advance(chunk.Index, int64(bytesRead))
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			e.sink.Advance(chunk.Index, -received)
			return nil, err
		}
	}
	if chunk.Ranged && received != chunk.Span() {
		e.sink.Advance(chunk.Index, -received)
		return nil, fmt.Errorf("size mismatch: expected %d bytes, got %d", chunk.Span(), received)
	}
	return data, nil
}

// backoff waits the retry delay plus jitter, honoring context cancellation.
func (e *Engine) backoff(ctx context.Context) error {
	wait := e.cfg.Retry.Delay
	if e.cfg.Retry.JitterMax > 0 {
		wait += time.Duration(rand.Int63n(int64(e.cfg.Retry.JitterMax)))
	}
	if wait <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
