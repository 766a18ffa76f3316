package stats

import (
	"fmt"
	"os"
	"runtime"
)

// sampleMemoryBytes returns the process's current resident memory in bytes,
// queried from /proc/self/statm and scaled by the actual OS page size
// rather than hard-coded to 4096. When /proc is unavailable (non-Linux,
// restricted sandboxes) it falls back to the Go runtime's own heap
// accounting. It never surfaces an error — memory sampling is best-effort
// and must never fail a request.
func sampleMemoryBytes() uint64 {
	if rss, ok := readRSSBytes(); ok {
		return rss
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return mem.HeapAlloc
}

// readRSSBytes reads current RSS from /proc/self/statm. The file's second
// field is resident pages; multiplying by the OS page size gives bytes.
func readRSSBytes() (rss uint64, ok bool) {
	f, err := os.Open("/proc/self/statm")
	if err != nil {
		return 0, false
	}
	defer f.Close()

	var vsize, residentPages int64

	if _, err := fmt.Fscan(f, &vsize); err != nil {
		return 0, false
	}

	if _, err := fmt.Fscan(f, &residentPages); err != nil {
		return 0, false
	}

	if residentPages < 0 {
		return 0, false
	}

	//nolint:gosec // residentPages is non-negative, checked above
	return uint64(residentPages) * uint64(os.Getpagesize()), true
}
