package thermal

import (
	"sync"

	"codeberg.org/mutker/thermalctl/internal/sensors"
)

const DefaultHistorySize = 100

// history is a fixed-size ring of the most recent snapshots.
type history struct {
	mu    sync.Mutex
	buf   []sensors.Snapshot
	next  int
	count int
}

func newHistory(size int) *history {
	if size <= 0 {
		size = DefaultHistorySize
	}

	return &history{buf: make([]sensors.Snapshot, size)}
}

func (h *history) add(s sensors.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf[h.next] = s
	h.next = (h.next + 1) % len(h.buf)
	if h.count < len(h.buf) {
		h.count++
	}
}

// snapshots returns the stored snapshots, oldest first.
func (h *history) snapshots() []sensors.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]sensors.Snapshot, 0, h.count)
	start := (h.next - h.count + len(h.buf)) % len(h.buf)
	for i := 0; i < h.count; i++ {
		out = append(out, h.buf[(start+i)%len(h.buf)])
	}

	return out
}
