package workshop

import (
	"sync"
	"weak"
)

// lifecycle tracks every Workshop that has started stations, so a process
// can stop everything it launched with a single StopAll call — an
// explicit owner in place of a process-wide atexit registry. Entries are
// weak pointers: tracking never extends a workshop's lifetime, and
// entries whose workshop has been collected are pruned on the next
// operation.
var lifecycle = struct {
	mu      sync.Mutex
	tracked []weak.Pointer[Workshop]
}{}

func trackWorkshop(w *Workshop) {
	lifecycle.mu.Lock()
	defer lifecycle.mu.Unlock()
	lifecycle.tracked = append(pruneLocked(w), weak.Make(w))
}

func untrackWorkshop(w *Workshop) {
	lifecycle.mu.Lock()
	defer lifecycle.mu.Unlock()
	lifecycle.tracked = pruneLocked(w)
}

// pruneLocked drops collected entries and any entry for w. Callers hold
// lifecycle.mu.
func pruneLocked(w *Workshop) []weak.Pointer[Workshop] {
	kept := lifecycle.tracked[:0]
	for _, p := range lifecycle.tracked {
		if v := p.Value(); v != nil && v != w {
			kept = append(kept, p)
		}
	}
	return kept
}

// StopAll stops every workshop still running in this process. Deferred
// from main, it replaces the original design's process-wide "stop
// everything at exit" hook.
func StopAll() {
	lifecycle.mu.Lock()
	tracked := append([]weak.Pointer[Workshop](nil), lifecycle.tracked...)
	lifecycle.mu.Unlock()

	for _, p := range tracked {
		if w := p.Value(); w != nil {
			w.Stop()
		}
	}
}
