package stats

import (
	"time"

	"k8s.io/utils/clock"

	"github.com/prsurve/deploy-dr-workloads/pkg/types"
)

// GroupFailure pairs a failed group with its error.
type GroupFailure struct {
	Index int
	Name  string
	Err   error
}

// RunStats is the summary of one run, snapshotted by Collector.Finalize.
type RunStats struct {
	RequestedGroups     int
	NamespacesPerGroup  int
	RequestedNamespaces int
	Succeeded           int
	Failed              int
	Failures            []GroupFailure
	ClusterNamespaces   map[string]int
	Elapsed             time.Duration
}

// Collector accumulates per-group outcomes. It is not safe for concurrent
// use; the deploy loop records sequentially.
type Collector struct {
	requestedGroups    int
	namespacesPerGroup int
	succeeded          int
	failed             int
	failures           []GroupFailure
	clusterNamespaces  map[string]int
	clock              clock.PassiveClock
	started            time.Time
}

// NewCollector starts the run clock.
func NewCollector(groups, namespacesPerGroup int, clk clock.PassiveClock) *Collector {
	return &Collector{
		requestedGroups:    groups,
		namespacesPerGroup: namespacesPerGroup,
		clusterNamespaces:  map[string]int{},
		clock:              clk,
		started:            clk.Now(),
	}
}

// Record notes one group's outcome. A nil err counts the group's namespaces
// toward its assigned cluster; a failure only lands in the failure list.
func (c *Collector) Record(group *types.WorkloadGroup, err error) {
	if err != nil {
		c.failed++
		c.failures = append(c.failures, GroupFailure{Index: group.Index, Name: group.Name, Err: err})
		return
	}
	c.succeeded++
	c.clusterNamespaces[group.Cluster.Name] += len(group.Namespaces)
}

// Finalize stamps the elapsed time and returns an independent snapshot:
// later Records do not alter what Finalize returned.
func (c *Collector) Finalize() RunStats {
	s := RunStats{
		RequestedGroups:     c.requestedGroups,
		NamespacesPerGroup:  c.namespacesPerGroup,
		RequestedNamespaces: c.requestedGroups * c.namespacesPerGroup,
		Succeeded:           c.succeeded,
		Failed:              c.failed,
		Failures:            append([]GroupFailure(nil), c.failures...),
		ClusterNamespaces:   make(map[string]int, len(c.clusterNamespaces)),
		Elapsed:             c.clock.Since(c.started),
	}
	for name, n := range c.clusterNamespaces {
		s.ClusterNamespaces[name] = n
	}
	return s
}
