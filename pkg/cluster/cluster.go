package cluster

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/prsurve/deploy-dr-workloads/pkg/config"
	"github.com/prsurve/deploy-dr-workloads/pkg/types"
)

// Registry holds the managed clusters of a run and the number of namespaces
// assigned to each so far. Registration order is significant: ties and
// hub-facing lookups resolve to the first cluster.
type Registry struct {
	clusters []types.ClusterIdentity
	loads    map[string]int
}

// NewRegistry registers the cluster pair in order.
func NewRegistry(c1, c2 types.ClusterIdentity) *Registry {
	return &Registry{
		clusters: []types.ClusterIdentity{c1, c2},
		loads:    map[string]int{c1.Name: 0, c2.Name: 0},
	}
}

// First returns the first registered cluster.
func (r *Registry) First() types.ClusterIdentity {
	return r.clusters[0]
}

// Peer returns the other cluster of the pair.
func (r *Registry) Peer(name string) types.ClusterIdentity {
	if r.clusters[0].Name == name {
		return r.clusters[1]
	}
	return r.clusters[0]
}

// ByName looks up a cluster by its registered name.
func (r *Registry) ByName(name string) (types.ClusterIdentity, bool) {
	for _, c := range r.clusters {
		if c.Name == name {
			return c, true
		}
	}
	return types.ClusterIdentity{}, false
}

// Load returns the namespace count charged to the named cluster.
func (r *Registry) Load(name string) int {
	return r.loads[name]
}

func (r *Registry) addLoad(name string, n int) {
	r.loads[name] += n
}

// Selector assigns workload groups to clusters according to a strategy. A
// non-empty pinned name overrides the strategy and routes every group to
// that cluster.
type Selector struct {
	registry *Registry
	strategy string
	pinned   string
	rng      *rand.Rand
}

func NewSelector(registry *Registry, strategy, pinned string) *Selector {
	return &Selector{
		registry: registry,
		strategy: strategy,
		pinned:   pinned,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Select picks the cluster for a group and charges the group's namespace
// count against it.
func (s *Selector) Select(group *types.WorkloadGroup) (types.ClusterIdentity, error) {
	cl, err := s.pick(group)
	if err != nil {
		return types.ClusterIdentity{}, err
	}
	s.registry.addLoad(cl.Name, len(group.Namespaces))
	return cl, nil
}

func (s *Selector) pick(group *types.WorkloadGroup) (types.ClusterIdentity, error) {
	if s.pinned != "" {
		cl, ok := s.registry.ByName(s.pinned)
		if !ok {
			return types.ClusterIdentity{}, fmt.Errorf("pinned cluster %q is not registered", s.pinned)
		}
		return cl, nil
	}

	switch s.strategy {
	case config.StrategyRoundRobin:
		return s.registry.clusters[(group.Index-1)%len(s.registry.clusters)], nil
	case config.StrategyRandom:
		return s.registry.clusters[s.rng.Intn(len(s.registry.clusters))], nil
	case config.StrategyLeastLoaded:
		return s.leastLoaded(), nil
	default:
		return types.ClusterIdentity{}, fmt.Errorf("unknown strategy %q", s.strategy)
	}
}

// leastLoaded returns the cluster with the fewest charged namespaces,
// preferring the first registered on ties.
func (s *Selector) leastLoaded() types.ClusterIdentity {
	best := s.registry.clusters[0]
	for _, c := range s.registry.clusters[1:] {
		if s.registry.loads[c.Name] < s.registry.loads[best.Name] {
			best = c
		}
	}
	return best
}
