package health

import "sync/atomic"

var draining atomic.Bool

// SetReady flips the readiness gate. Entrypoints set it to false before
// draining connections so orchestrators stop routing new requests while
// in-flight work completes.
func SetReady(ready bool) {
	draining.Store(!ready)
}

func accepting() bool {
	return !draining.Load()
}
