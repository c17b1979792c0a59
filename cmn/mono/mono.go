// Package mono provides low-level monotonic time, used by the scan
// scheduler to time each worker's R stripe for its progress log line.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package mono

import "time"

var start = time.Now()

// NanoTime returns a monotonic clock reading in nanoseconds, measured from
// package initialization. Go's time.Now() carries a monotonic reading
// alongside the wall clock (see the "Monotonic Clocks" section of the time
// package docs) and time.Since uses it, so subtracting two NanoTime() values
// is safe across NTP/wall-clock adjustments without the runtime.nanotime
// linkname trick the original package used purely as a micro-optimization to
// avoid a time.Time allocation.
func NanoTime() int64 {
	return int64(time.Since(start))
}
