// Package workshop is the supervisor: it runs as a worker itself, and
// routes mail to the stations hosting every other registered worker
// class.
package workshop

import (
	"fmt"
	"sort"
	"sync"

	"github.com/flexplan/flexplan"
	"github.com/flexplan/flexplan/observability"
)

// StationKind names the station construction profile a registration uses.
type StationKind int

const (
	StationThread StationKind = iota
	StationProcess
	StationProcessFork
	StationProcessForkServer
	StationProcessSpawn
)

// WorkbenchKind selects the workbench that runs inside a station.
type WorkbenchKind int

const (
	WorkbenchLoop WorkbenchKind = iota
	WorkbenchConcurrentLoop
)

// ParseStationKind resolves one of the registry's string keys ("thread",
// "process", "fork", "forkserver", "spawn") to its StationKind.
func ParseStationKind(name string) (StationKind, error) {
	switch name {
	case "thread":
		return StationThread, nil
	case "process":
		return StationProcess, nil
	case "fork":
		return StationProcessFork, nil
	case "forkserver":
		return StationProcessForkServer, nil
	case "spawn":
		return StationProcessSpawn, nil
	default:
		return 0, fmt.Errorf("%s: unknown station kind %q", flexplan.Namespace, name)
	}
}

func (k StationKind) String() string {
	switch k {
	case StationThread:
		return "thread"
	case StationProcess:
		return "process"
	case StationProcessFork:
		return "fork"
	case StationProcessForkServer:
		return "forkserver"
	case StationProcessSpawn:
		return "spawn"
	default:
		return "unknown"
	}
}

// ParseWorkbenchKind resolves one of the registry's string keys ("loop",
// "concurrent-loop") to its WorkbenchKind.
func ParseWorkbenchKind(name string) (WorkbenchKind, error) {
	switch name {
	case "loop":
		return WorkbenchLoop, nil
	case "concurrent-loop":
		return WorkbenchConcurrentLoop, nil
	default:
		return 0, fmt.Errorf("%s: unknown workbench kind %q", flexplan.Namespace, name)
	}
}

func (k WorkbenchKind) String() string {
	switch k {
	case WorkbenchLoop:
		return "loop"
	case WorkbenchConcurrentLoop:
		return "concurrent-loop"
	default:
		return "unknown"
	}
}

// StationSpec is a registration entry: which worker class, built how,
// hosted on what kind of station and workbench. DisplayName is an
// optional human-readable label for logs and diagnostics; it plays no
// part in routing.
type StationSpec struct {
	WorkerClassID string
	DisplayName   string
	Station       StationKind
	Workbench     WorkbenchKind
	Creator       *flexplan.InstanceCreator[any]
	CtorArgs      []any
	CtorKwArgs    map[string]any
	InboxSize     int
	OutboxSize    int
	Observer      observability.Observer
}

// Registry is a hierarchical set of StationSpecs keyed by worker class id.
// A child scope (created with Scope) may add new entries, override a
// parent's entry for the same worker class, or exclude a parent entry
// entirely — grounded on the kernel's agent.Registry
// (Register/Replace/Unregister) composed with its
// observability.RegisterObserver global-registry pattern.
type Registry struct {
	parent *Registry

	mu       sync.RWMutex
	entries  map[string]StationSpec
	excluded map[string]struct{}
}

// NewRegistry creates an empty top-level registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[string]StationSpec{}, excluded: map[string]struct{}{}}
}

// Scope creates a child registry that inherits r's entries unless it adds,
// overrides, or excludes them.
func (r *Registry) Scope() *Registry {
	return &Registry{parent: r, entries: map[string]StationSpec{}, excluded: map[string]struct{}{}}
}

// Add registers spec, overriding any parent entry for the same worker
// class within this scope.
func (r *Registry) Add(spec StationSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.excluded, spec.WorkerClassID)
	r.entries[spec.WorkerClassID] = spec
}

// Exclude hides workerClassID from this scope even if a parent registry
// defines it.
func (r *Registry) Exclude(workerClassID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, workerClassID)
	r.excluded[workerClassID] = struct{}{}
}

// Resolve looks up workerClassID, checking this scope before falling back
// to the parent, and honoring local exclusion of parent entries.
func (r *Registry) Resolve(workerClassID string) (StationSpec, bool) {
	r.mu.RLock()
	spec, ok := r.entries[workerClassID]
	_, excluded := r.excluded[workerClassID]
	parent := r.parent
	r.mu.RUnlock()

	if ok {
		return spec, true
	}
	if excluded || parent == nil {
		return StationSpec{}, false
	}
	return parent.Resolve(workerClassID)
}

// All returns every worker class visible from this scope, local entries
// taking precedence over the parent's, sorted by worker class id.
func (r *Registry) All() []StationSpec {
	seen := map[string]StationSpec{}
	r.collect(seen)

	out := make([]StationSpec, 0, len(seen))
	for _, spec := range seen {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkerClassID < out[j].WorkerClassID })
	return out
}

func (r *Registry) collect(into map[string]StationSpec) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.parent != nil {
		r.parent.collect(into)
	}
	for id := range r.excluded {
		delete(into, id)
	}
	for id, spec := range r.entries {
		into[id] = spec
	}
}
