package workflow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func steps(ids ...string) []WorkflowStep {
	out := make([]WorkflowStep, 0, len(ids))
	for _, id := range ids {
		out = append(out, WorkflowStep{ID: id, Type: StepTypeTool})
	}
	return out
}

func withDeps(s []WorkflowStep, id string, deps ...string) []WorkflowStep {
	for i := range s {
		if s[i].ID == id {
			s[i].Dependencies = deps
		}
	}
	return s
}

func TestBuildGraph_LinearChain(t *testing.T) {
	t.Parallel()

	s := steps("fetch", "transform", "publish")
	s = withDeps(s, "transform", "fetch")
	s = withDeps(s, "publish", "transform")

	g, verr := BuildGraph(s)
	require.Nil(t, verr)
	assert.Equal(t, []string{"fetch", "transform", "publish"}, g.Order())
	assert.Equal(t, []string{"fetch"}, g.Roots())
}

func TestBuildGraph_DiamondBreaksTiesByDeclarationOrder(t *testing.T) {
	t.Parallel()

	// b and c are both eligible after a; c is declared first and must win.
	s := steps("a", "c", "b", "d")
	s = withDeps(s, "c", "a")
	s = withDeps(s, "b", "a")
	s = withDeps(s, "d", "b", "c")

	g, verr := BuildGraph(s)
	require.Nil(t, verr)
	assert.Equal(t, []string{"a", "c", "b", "d"}, g.Order())
}

func TestBuildGraph_Deterministic(t *testing.T) {
	t.Parallel()

	s := steps("w", "x", "y", "z")
	s = withDeps(s, "y", "w")
	s = withDeps(s, "z", "x", "y")

	first, verr := BuildGraph(s)
	require.Nil(t, verr)
	for i := 0; i < 20; i++ {
		g, verr := BuildGraph(s)
		require.Nil(t, verr)
		assert.Equal(t, first.Order(), g.Order())
	}
}

func TestBuildGraph_CycleReportsFullPath(t *testing.T) {
	t.Parallel()

	s := steps("a", "b", "c")
	s = withDeps(s, "a", "c")
	s = withDeps(s, "b", "a")
	s = withDeps(s, "c", "b")

	g, verr := BuildGraph(s)
	assert.Nil(t, g)
	require.NotNil(t, verr)

	found := false
	for _, v := range verr.Violations {
		if strings.Contains(v, "cycle detected") && strings.Contains(v, "a -> b -> c -> a") {
			found = true
		}
	}
	assert.True(t, found, "expected the full cycle path, got %v", verr.Violations)
}

func TestBuildGraph_ReportsEveryViolation(t *testing.T) {
	t.Parallel()

	s := []WorkflowStep{
		{ID: "a", Type: StepTypeTool},
		{ID: "", Type: StepTypeTool},
		{ID: "a", Type: StepTypeTool},
		{ID: "b", Type: StepTypeTool, Dependencies: []string{"b"}},
		{ID: "c", Type: StepTypeTool, Dependencies: []string{"ghost"}},
	}

	g, verr := BuildGraph(s)
	assert.Nil(t, g)
	require.NotNil(t, verr)

	joined := strings.Join(verr.Violations, "\n")
	assert.Contains(t, joined, "empty id")
	assert.Contains(t, joined, `duplicate step id "a"`)
	assert.Contains(t, joined, `step "b" depends on itself`)
	assert.Contains(t, joined, `unknown step "ghost"`)
	assert.GreaterOrEqual(t, len(verr.Violations), 4)
}

func TestBuildGraph_EmptyWorkflow(t *testing.T) {
	t.Parallel()

	g, verr := BuildGraph(nil)
	assert.Nil(t, g)
	require.NotNil(t, verr)
	assert.Contains(t, verr.Violations[0], "no steps")
}

func TestTransitiveDependents(t *testing.T) {
	t.Parallel()

	s := steps("a", "b", "c", "d", "e")
	s = withDeps(s, "b", "a")
	s = withDeps(s, "c", "b")
	s = withDeps(s, "d", "c")
	s = withDeps(s, "e", "a")

	g, verr := BuildGraph(s)
	require.Nil(t, verr)

	assert.Equal(t, []string{"c", "d"}, g.TransitiveDependents("b"))
	assert.Equal(t, []string{"b", "c", "d", "e"}, g.TransitiveDependents("a"))
	assert.Empty(t, g.TransitiveDependents("d"))
}
