package promreclaim

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/zeebo/assert"
	"go.uber.org/goleak"

	"github.com/zeebo/reclaim"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixed reclaim.Stats

func (f fixed) Stats() reclaim.Stats { return reclaim.Stats(f) }

func TestCollector(t *testing.T) {
	c := New("test", fixed{Contexts: 3, Backlog: 17, Frees: 40, Terminated: 23, Generation: 9}, nil)

	assert.Equal(t, testutil.CollectAndCount(c), 15)
	assert.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(`
# HELP test_reclaim_backlog Freed nodes waiting in the backlogs of registered contexts.
# TYPE test_reclaim_backlog gauge
test_reclaim_backlog 17
# HELP test_reclaim_contexts Number of registered contexts.
# TYPE test_reclaim_contexts gauge
test_reclaim_contexts 3
# HELP test_reclaim_frees_total Nodes freed.
# TYPE test_reclaim_frees_total counter
test_reclaim_frees_total 40
# HELP test_reclaim_generation Current quiescence generation.
# TYPE test_reclaim_generation gauge
test_reclaim_generation 9
# HELP test_reclaim_terminated_total Nodes terminated.
# TYPE test_reclaim_terminated_total counter
test_reclaim_terminated_total 23
`),
		"test_reclaim_backlog",
		"test_reclaim_contexts",
		"test_reclaim_frees_total",
		"test_reclaim_generation",
		"test_reclaim_terminated_total",
	))
}

func TestCollectorReclaimer(t *testing.T) {
	r, err := reclaim.New(reclaim.Config[int]{Terminate: func(*reclaim.Node[int], bool) {}})
	assert.NoError(t, err)

	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(
		New("a", r, prometheus.Labels{"node": "int"}),
		New("b", r, nil),
	)

	c, err := r.NewContext()
	assert.NoError(t, err)
	for i := 0; i < 10; i++ {
		assert.NoError(t, c.Free(c.Alloc()))
	}
	c.Scan()
	c.Close()
	r.Close()

	n, err := testutil.GatherAndCount(reg)
	assert.NoError(t, err)
	assert.Equal(t, n, 30)

	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP a_reclaim_allocs_total Nodes allocated.
# TYPE a_reclaim_allocs_total counter
a_reclaim_allocs_total{node="int"} 10
# HELP b_reclaim_released_total Nodes returned to the pool.
# TYPE b_reclaim_released_total counter
b_reclaim_released_total 10
`),
		"a_reclaim_allocs_total",
		"b_reclaim_released_total",
	))
}
