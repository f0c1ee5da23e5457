package waitgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddWithoutCycle(t *testing.T) {
	g := New()

	release, err := g.Add("api", "db")
	require.NoError(t, err)
	assert.Equal(t, []string{"db"}, g.Waiting("api"))

	release()
	release()
	assert.Empty(t, g.Waiting("api"))
}

func TestSelfWait(t *testing.T) {
	g := New()

	_, err := g.Add("db", "db")

	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"db", "db"}, cycle.Path)
}

func TestMutualWait(t *testing.T) {
	g := New()

	_, err := g.Add("a", "b")
	require.NoError(t, err)

	_, err = g.Add("b", "a")
	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"b", "a", "b"}, cycle.Path)
	assert.Equal(t, "wait cycle: b -> a -> b", err.Error())
	assert.Empty(t, g.Waiting("b"), "refused waits are not recorded")
}

func TestTransitiveCycle(t *testing.T) {
	g := New()

	_, err := g.Add("a", "b")
	require.NoError(t, err)
	_, err = g.Add("b", "c")
	require.NoError(t, err)

	_, err = g.Add("c", "a")
	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"c", "a", "b", "c"}, cycle.Path)
}

func TestReleaseBreaksCycle(t *testing.T) {
	g := New()

	release, err := g.Add("a", "b")
	require.NoError(t, err)
	release()

	_, err = g.Add("b", "a")
	assert.NoError(t, err)
}

func TestParallelWaitsOnSameTarget(t *testing.T) {
	g := New()

	first, err := g.Add("api", "db")
	require.NoError(t, err)
	_, err = g.Add("api", "db")
	require.NoError(t, err)

	first()
	assert.Equal(t, []string{"db"}, g.Waiting("api"), "second wait still pending")

	_, err = g.Add("db", "api")
	assert.Error(t, err)
}

func TestDiamondIsNotACycle(t *testing.T) {
	g := New()

	for _, e := range [][2]string{{"api", "db"}, {"api", "cache"}, {"cache", "db"}} {
		_, err := g.Add(e[0], e[1])
		require.NoError(t, err)
	}
	_, err := g.Add("worker", "api")
	assert.NoError(t, err)
}
