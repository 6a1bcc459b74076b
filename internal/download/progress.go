package download

// ProgressSink receives byte-level progress events from the fetchers.
// Advance is called concurrently from every in-flight segment and must be
// safe for concurrent use; n may be negative when a failed attempt rolls
// its partial bytes back out before a retry.
type ProgressSink interface {
	Begin(total int64)
	StartSegment(index int, size int64)
	Advance(index int, n int64)
	EndSegment(index int)
	Finish()
}

// NopSink discards all progress events.
type NopSink struct{}

func (NopSink) Begin(total int64) {}

func (NopSink) StartSegment(index int, size int64) {}

func (NopSink) Advance(index int, n int64) {}

func (NopSink) EndSegment(index int) {}

func (NopSink) Finish() {}
