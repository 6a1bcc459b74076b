package download

import (
	"fmt"
	"time"
)

const (
	DefaultAdmissionLimit = 64
	DefaultBlockCount     = 32
	DefaultBlockSize      = 10 * 1024 * 1024 // 10MB per segment in the large-resource regime
	DefaultMaxAttempts    = 5
	DefaultRetryDelay     = 500 * time.Millisecond
	DefaultRetryJitterMax = 2 * time.Second
)

// ResourceInfo is the result of the HEAD probe. It is written once before
// any segment fetch starts and read-only afterwards.
type ResourceInfo struct {
	Size          int64
	AcceptRanges  bool
	SuggestedName string
}

// Chunk is one planned byte range of the resource. Ranged is false for the
// single-chunk fallback, meaning the request carries no Range header and
// EndByte is meaningless.
type Chunk struct {
	Index     int
	StartByte int64
	EndByte   int64 // inclusive
	Ranged    bool
}

// Span returns the number of bytes the chunk covers, or 0 when unranged.
func (c Chunk) Span() int64 {
	if !c.Ranged {
		return 0
	}
	return c.EndByte - c.StartByte + 1
}

func (c Chunk) RangeHeader() string {
	if !c.Ranged {
		return ""
	}
	return fmt.Sprintf("bytes=%d-%d", c.StartByte, c.EndByte)
}

// Segment is one fetched chunk. The whole payload is buffered in memory
// until reassembly.
type Segment struct {
	Index int
	Data  []byte
}

// RetryPolicy applies independently to every request attempt loop. The wait
// between attempts is Delay plus a uniformly random duration in [0, JitterMax].
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	JitterMax   time.Duration
}

// Config is the full configuration of one download.
type Config struct {
	Method             string
	URL                string
	Headers            map[string]string
	Body               []byte
	OutputPath         string
	AllowedStatusCodes []int // always extended with 200-299
	Retry              RetryPolicy
	AdmissionLimit     int
	BlockCount         int
	BlockSize          int64
}

func (c *Config) applyDefaults() {
	if c.Method == "" {
		c.Method = "GET"
	}
	if c.AdmissionLimit <= 0 {
		c.AdmissionLimit = DefaultAdmissionLimit
	}
	if c.BlockCount <= 0 {
		c.BlockCount = DefaultBlockCount
	}
	if c.BlockSize <= 0 {
		c.BlockSize = DefaultBlockSize
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = DefaultMaxAttempts
	}
	// Zero waits mean "no wait"; only negative values take the defaults.
	if c.Retry.Delay < 0 {
		c.Retry.Delay = DefaultRetryDelay
	}
	if c.Retry.JitterMax < 0 {
		c.Retry.JitterMax = DefaultRetryJitterMax
	}
}

func (c *Config) statusAllowed(code int) bool {
	if code >= 200 && code < 300 {
		return true
	}
	for _, allowed := range c.AllowedStatusCodes {
		if code == allowed {
			return true
		}
	}
	return false
}
