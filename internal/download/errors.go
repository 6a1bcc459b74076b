package download

import "fmt"

// ProbeError means the HEAD probe could not be completed after retries.
// It is fatal: no download is attempted once the probe fails.
type ProbeError struct {
	URL string
	Err error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probing %s failed: %v", e.URL, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// StatusError is returned when a response status code falls outside the
// allow-list. It is retryable within a single fetch attempt loop.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// ExhaustedError means one segment used all of its retry attempts without
// success. A single exhausted segment invalidates the whole download.
type ExhaustedError struct {
	Chunk    Chunk
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	if e.Chunk.Ranged {
		return fmt.Sprintf("segment %d (bytes %d-%d) failed after %d attempts: %v",
			e.Chunk.Index, e.Chunk.StartByte, e.Chunk.EndByte, e.Attempts, e.Err)
	}
	return fmt.Sprintf("segment %d failed after %d attempts: %v", e.Chunk.Index, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// WriteError means the destination could not be created or written.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
