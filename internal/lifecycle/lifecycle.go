package lifecycle

import (
	"sync/atomic"
	"time"
)

var (
	shuttingDown atomic.Bool
	drainStarted atomic.Int64
)

// SetShuttingDown marks the process as draining. /health answers 503 shutting-down
// while the flag is set so load balancers stop routing new /chart and /series traffic.
func SetShuttingDown(v bool) {
	if v {
		drainStarted.CompareAndSwap(0, time.Now().UnixNano())
	} else {
		drainStarted.Store(0)
	}
	shuttingDown.Store(v)
}

// IsShuttingDown returns true if the process is draining.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}

// DrainingFor returns how long the process has been draining, or 0.
func DrainingFor() time.Duration {
	started := drainStarted.Load()
	if started == 0 {
		return 0
	}
	return time.Since(time.Unix(0, started))
}
