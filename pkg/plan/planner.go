package plan

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/prsurve/deploy-dr-workloads/pkg/config"
	"github.com/prsurve/deploy-dr-workloads/pkg/types"
)

// ErrNameCollision reports that two planned namespaces resolved to the same
// name. A fixed base plus distinct counters cannot collide today; the sweep
// guards the naming scheme against future edits.
var ErrNameCollision = errors.New("namespace name collision")

// Plan expands the configuration into workload groups and their namespace
// names, in group order. Names follow
//
//	{prefix-}{type}-{workload}-{pvc}-{rp-}{counter}{-cg}
//
// where multi-namespace groups use "multi-{group}-{ns}" as the counter and
// take the "multi-{group}" form as the group name.
func Plan(cfg *config.Config) ([]*types.WorkloadGroup, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base := baseName(cfg)
	suffix := cgSuffix(cfg)
	groups := make([]*types.WorkloadGroup, 0, cfg.WorkloadCount)
	seen := make(map[string]int, cfg.WorkloadCount*cfg.MultiNSWorkload)

	for g := 1; g <= cfg.WorkloadCount; g++ {
		group := &types.WorkloadGroup{Index: g}
		if cfg.MultiNSWorkload > 1 {
			group.Name = base + "multi-" + strconv.Itoa(g) + suffix
			for n := 1; n <= cfg.MultiNSWorkload; n++ {
				ns := base + "multi-" + strconv.Itoa(g) + "-" + strconv.Itoa(n) + suffix
				group.Namespaces = append(group.Namespaces, ns)
			}
		} else {
			group.Name = base + strconv.Itoa(g) + suffix
			group.Namespaces = []string{group.Name}
		}

		for _, ns := range group.Namespaces {
			if prev, ok := seen[ns]; ok {
				return nil, fmt.Errorf("%w: %q planned for both group %d and group %d", ErrNameCollision, ns, prev, g)
			}
			seen[ns] = g
		}
		groups = append(groups, group)
	}

	return groups, nil
}

// baseName assembles the shared name prefix, trailing dash included.
func baseName(cfg *config.Config) string {
	name := typePrefix(cfg) + "-" + workloadShort(cfg) + "-" + cfg.PVCType + "-"
	if cfg.Recipe {
		name += "rp-"
	}
	if cfg.NSPrefix != "" {
		name = cfg.NSPrefix + "-" + name
	}
	return name
}

func typePrefix(cfg *config.Config) string {
	switch cfg.WorkloadType {
	case config.TypeAppSet:
		if cfg.ConsistencyGroup {
			return "ap"
		}
		return "app"
	case config.TypeSubscription:
		if cfg.ConsistencyGroup {
			return "ap"
		}
		return "sub"
	default:
		return "imp"
	}
}

// workloadShort abbreviates well-known workloads under consistency groups to
// keep names inside label length limits.
func workloadShort(cfg *config.Config) string {
	if !cfg.ConsistencyGroup {
		return cfg.Workload
	}
	switch cfg.Workload {
	case config.WorkloadBusybox:
		return "bb"
	case config.WorkloadMySQL:
		return "my"
	default:
		return cfg.Workload
	}
}

func cgSuffix(cfg *config.Config) string {
	if cfg.ConsistencyGroup {
		return "-cg"
	}
	return ""
}
