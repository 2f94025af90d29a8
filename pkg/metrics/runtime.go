package metrics

import (
	"runtime"
	"time"
)

// CollectRuntime samples Go runtime stats into gauges under the given
// prefix on a fixed interval. Runs until the process exits.
func (r *Registry) CollectRuntime(prefix string, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	goroutines := r.Gauge(prefix+"_goroutines", "Number of live goroutines")
	heapAlloc := r.Gauge(prefix+"_heap_alloc_bytes", "Bytes of allocated heap objects")
	heapSys := r.Gauge(prefix+"_heap_sys_bytes", "Bytes of heap obtained from the OS")
	gcPauses := r.Counter(prefix+"_gc_total", "Completed GC cycles")

	go func() {
		var ms runtime.MemStats
		var lastGC uint32
		for {
			runtime.ReadMemStats(&ms)
			goroutines.Set(int64(runtime.NumGoroutine()))
			heapAlloc.Set(int64(ms.HeapAlloc))
			heapSys.Set(int64(ms.HeapSys))
			gcPauses.Add(int64(ms.NumGC - lastGC))
			lastGC = ms.NumGC
			time.Sleep(interval)
		}
	}()
}
