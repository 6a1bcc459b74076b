package output

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hsget/hsget/internal/utils"
)

// Manager renders one aggregate progress bar plus a bar per in-flight
// segment. It satisfies the download engine's ProgressSink, so fetch
// goroutines feed it concurrently while a display goroutine redraws on a
// ticker.
type Manager struct {
	mu          sync.RWMutex
	total       int64
	aggregate   int64
	segments    map[int]*segmentProgress
	started     time.Time
	numLines    int
	maxVisible  int
	displayTick time.Duration
	doneCh      chan struct{}
	displayWg   sync.WaitGroup
}

type segmentProgress struct {
	current int64
	total   int64
	done    bool
}

func NewManager() *Manager {
	return &Manager{
		segments:    make(map[int]*segmentProgress),
		maxVisible:  8,
		displayTick: 300 * time.Millisecond,
		doneCh:      make(chan struct{}),
	}
}

func (m *Manager) Begin(total int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total = total
	m.started = time.Now()
}

func (m *Manager) StartSegment(index int, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.segments[index] = &segmentProgress{total: size}
}

func (m *Manager) Advance(index int, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seg, exists := m.segments[index]; exists {
		seg.current += n
	}
	m.aggregate += n
}

func (m *Manager) EndSegment(index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seg, exists := m.segments[index]; exists {
		seg.done = true
	}
}

func (m *Manager) Finish() {}

// StartDisplay launches the redraw goroutine. Callers must pair it with
// StopDisplay.
func (m *Manager) StartDisplay() {
	m.displayWg.Add(1)
	go func() {
		defer m.displayWg.Done()
		ticker := time.NewTicker(m.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-m.doneCh:
				m.render()
				return
			case <-ticker.C:
				m.render()
			}
		}
	}()
}

func (m *Manager) StopDisplay() {
	close(m.doneCh)
	m.displayWg.Wait()
	fmt.Println()
}

func (m *Manager) render() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Rewind over the previous frame
	for i := 0; i < m.numLines; i++ {
		fmt.Print("\033[1A\033[2K")
	}

	lines := []string{}
	elapsed := time.Since(m.started).Seconds()
	barWidth := min(40, getTerminalWidth()-45)
	aggLine := fmt.Sprintf("%s %s %s/%s %s %s",
		FInfo("total"),
		ProgressBar(m.aggregate, m.total, barWidth),
		utils.FormatBytes(uint64(m.aggregate)),
		utils.FormatBytes(uint64(max(m.total, 0))),
		StyleSymbols["bullet"],
		utils.FormatSpeed(m.aggregate, elapsed))
	if eta := m.eta(elapsed); eta != "" {
		aggLine += fmt.Sprintf(" %s %s", StyleSymbols["bullet"], eta)
	}
	lines = append(lines, aggLine)

	indices := make([]int, 0, len(m.segments))
	active, completed := 0, 0
	for index, seg := range m.segments {
		if seg.done {
			completed++
			continue
		}
		indices = append(indices, index)
		active++
	}
	sort.Ints(indices)
	if len(indices) > m.maxVisible {
		indices = indices[:m.maxVisible]
	}
	for _, index := range indices {
		seg := m.segments[index]
		lines = append(lines, fmt.Sprintf("  %s %s",
			detailStyle.Render(fmt.Sprintf("chunk %4d", index)),
			ProgressBar(seg.current, seg.total, barWidth)))
	}
	if active > m.maxVisible {
		lines = append(lines, debugStyle.Render(fmt.Sprintf("  … %d more in flight", active-m.maxVisible)))
	}
	lines = append(lines, debugStyle.Render(fmt.Sprintf("  %d/%d segments done", completed, len(m.segments))))

	for _, line := range lines {
		fmt.Println(line)
	}
	m.numLines = len(lines)
}

func (m *Manager) eta(elapsed float64) string {
	if m.aggregate <= 0 || m.total <= 0 || elapsed <= 0 || m.aggregate >= m.total {
		return ""
	}
	speed := float64(m.aggregate) / elapsed
	remaining := time.Duration(float64(m.total-m.aggregate)/speed) * time.Second
	return remaining.Round(time.Second).String()
}
