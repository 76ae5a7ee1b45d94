package workshop

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func spec(id string) StationSpec {
	return StationSpec{WorkerClassID: id, Station: StationThread, Workbench: WorkbenchLoop}
}

func TestRegistry_ScopeInheritsAndOverrides(t *testing.T) {
	parent := NewRegistry()
	parent.Add(spec("alpha"))
	parent.Add(spec("beta"))

	child := parent.Scope()
	override := spec("beta")
	override.Workbench = WorkbenchConcurrentLoop
	child.Add(override)

	got, ok := child.Resolve("alpha")
	require.True(t, ok)
	require.Equal(t, "alpha", got.WorkerClassID)

	got, ok = child.Resolve("beta")
	require.True(t, ok)
	require.Equal(t, WorkbenchConcurrentLoop, got.Workbench)

	// The parent's own view is untouched by the child's override.
	got, ok = parent.Resolve("beta")
	require.True(t, ok)
	require.Equal(t, WorkbenchLoop, got.Workbench)
}

func TestRegistry_ExcludeHidesParentEntry(t *testing.T) {
	parent := NewRegistry()
	parent.Add(spec("alpha"))

	child := parent.Scope()
	child.Exclude("alpha")

	_, ok := child.Resolve("alpha")
	require.False(t, ok)

	_, ok = parent.Resolve("alpha")
	require.True(t, ok)

	// Re-adding in the child clears the exclusion.
	child.Add(spec("alpha"))
	_, ok = child.Resolve("alpha")
	require.True(t, ok)
}

func TestRegistry_AllIsSortedAndScopeAware(t *testing.T) {
	parent := NewRegistry()
	parent.Add(spec("zeta"))
	parent.Add(spec("alpha"))

	child := parent.Scope()
	child.Add(spec("mid"))
	child.Exclude("zeta")

	all := child.All()
	require.Len(t, all, 2)
	require.Equal(t, "alpha", all[0].WorkerClassID)
	require.Equal(t, "mid", all[1].WorkerClassID)
}

func TestParseStationKind_RoundTrips(t *testing.T) {
	for _, name := range []string{"thread", "process", "fork", "forkserver", "spawn"} {
		k, err := ParseStationKind(name)
		require.NoError(t, err)
		require.Equal(t, name, k.String())
	}
	_, err := ParseStationKind("mainframe")
	require.Error(t, err)
}

func TestParseWorkbenchKind_RoundTrips(t *testing.T) {
	for _, name := range []string{"loop", "concurrent-loop"} {
		k, err := ParseWorkbenchKind(name)
		require.NoError(t, err)
		require.Equal(t, name, k.String())
	}
	_, err := ParseWorkbenchKind("turbo")
	require.Error(t, err)
}
