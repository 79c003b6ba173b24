package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Count returns the worker count for a task type, derived from the number
// of available CPUs. The multiplier adjusts for task characteristics
// (1.0 CPU-bound, 2.0 I/O-bound). The limit caps the result; use 0 for
// no cap. The PIPELINE_WORKERS environment variable overrides everything
// except the cap.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv("PIPELINE_WORKERS"); override != "" {
		if n, err := strconv.Atoi(override); err == nil && n > 0 {
			return capped(n, limit)
		}
	}

	// GOMAXPROCS tracks container CPU limits on Go 1.19+.
	n := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if n < 1 {
		n = 1
	}
	return capped(n, limit)
}

// ForCPU returns the worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns the worker count for I/O-bound tasks (2 per CPU).
// Pipeline runs spend most of their time waiting on ffmpeg/ffprobe
// subprocesses, so this is the sizing the executor uses.
func ForIO(limit int) int {
	return Count(2.0, limit)
}

func capped(n, limit int) int {
	if limit > 0 && n > limit {
		return limit
	}
	return n
}
