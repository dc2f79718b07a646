package protect

import (
	"github.com/prsurve/deploy-dr-workloads/pkg/config"
	"github.com/prsurve/deploy-dr-workloads/pkg/types"
)

// Details carries the label selectors that match a workload's pods and PVCs.
type Details struct {
	PodSelector types.SelectorRequirement
	PVCSelector types.SelectorRequirement
}

// WorkloadDetails returns the selectors for the known sample workloads.
// Anything else is treated as a custom workload and matched by its own name
// under the appname label.
func WorkloadDetails(pvcType, workload string) Details {
	switch workload {
	case config.WorkloadBusybox:
		if pvcType == config.PVCTypeMix {
			return Details{
				PodSelector: types.SelectorRequirement{Key: "workloadpattern", Values: []string{"simple_io"}},
				PVCSelector: types.SelectorRequirement{Key: "appname", Values: []string{"busybox_app_mix"}},
			}
		}
		return Details{
			PodSelector: types.SelectorRequirement{Key: "workloadpattern", Values: []string{"simple_io"}},
			PVCSelector: types.SelectorRequirement{Key: "workloadpattern", Values: []string{"simple_io_pvc"}},
		}
	case config.WorkloadVM:
		return Details{
			PodSelector: types.SelectorRequirement{Key: "appname", Values: []string{"kubevirt"}},
			PVCSelector: types.SelectorRequirement{Key: "appname", Values: []string{"kubevirt"}},
		}
	case config.WorkloadMySQL:
		return Details{
			PodSelector: types.SelectorRequirement{Key: "appname", Values: []string{"mysql_app_1"}},
			PVCSelector: types.SelectorRequirement{Key: "workloadpattern", Values: []string{"mysql_io_pvc"}},
		}
	default:
		return Details{
			PodSelector: types.SelectorRequirement{Key: "appname", Values: []string{workload}},
			PVCSelector: types.SelectorRequirement{Key: "appname", Values: []string{workload}},
		}
	}
}

// Build assembles the protection descriptor for a group that has already
// been assigned a cluster. It returns nil when protection is disabled.
func Build(group *types.WorkloadGroup, cfg *config.Config, policyName string) *types.Protection {
	if !cfg.ProtectWorkload {
		return nil
	}

	d := WorkloadDetails(cfg.PVCType, cfg.Workload)
	p := &types.Protection{
		PolicyName:       policyName,
		PreferredCluster: group.Cluster.Name,
		Namespaces:       append([]string(nil), group.Namespaces...),
		AppType:          cfg.Workload,
		PodSelector:      d.PodSelector,
		PVCSelector:      d.PVCSelector,
		ConsistencyGroup: cfg.ConsistencyGroup,
	}
	if cfg.ConsistencyGroup {
		p.VGRClassName = "vrgc-" + group.Name
	}

	if cfg.Recipe {
		p.Mode = types.ProtectionRecipe
		for _, ns := range group.Namespaces {
			p.Recipes = append(p.Recipes, types.RecipeRef{Name: ns, Namespace: ns})
		}
	} else {
		p.Mode = types.ProtectionDirect
	}
	return p
}
