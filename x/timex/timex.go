package timex

import "time"

var boot = time.Now()

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// UptimeMs returns monotonic milliseconds since process start. Unlike NowMs
// it never jumps with wall-clock adjustments, so it is safe for elapsed-time
// arithmetic in tick loops.
func UptimeMs() int64 { return time.Since(boot).Milliseconds() }
