package protect

import (
	"testing"

	"github.com/prsurve/deploy-dr-workloads/pkg/config"
	"github.com/prsurve/deploy-dr-workloads/pkg/types"
)

func TestWorkloadDetails(t *testing.T) {
	tests := []struct {
		name     string
		pvcType  string
		workload string
		wantPod  types.SelectorRequirement
		wantPVC  types.SelectorRequirement
	}{
		{
			name:     "busybox",
			pvcType:  config.PVCTypeRBD,
			workload: config.WorkloadBusybox,
			wantPod:  types.SelectorRequirement{Key: "workloadpattern", Values: []string{"simple_io"}},
			wantPVC:  types.SelectorRequirement{Key: "workloadpattern", Values: []string{"simple_io_pvc"}},
		},
		{
			name:     "busybox on mixed storage",
			pvcType:  config.PVCTypeMix,
			workload: config.WorkloadBusybox,
			wantPod:  types.SelectorRequirement{Key: "workloadpattern", Values: []string{"simple_io"}},
			wantPVC:  types.SelectorRequirement{Key: "appname", Values: []string{"busybox_app_mix"}},
		},
		{
			name:     "vm",
			pvcType:  config.PVCTypeRBD,
			workload: config.WorkloadVM,
			wantPod:  types.SelectorRequirement{Key: "appname", Values: []string{"kubevirt"}},
			wantPVC:  types.SelectorRequirement{Key: "appname", Values: []string{"kubevirt"}},
		},
		{
			name:     "mysql",
			pvcType:  config.PVCTypeCephFS,
			workload: config.WorkloadMySQL,
			wantPod:  types.SelectorRequirement{Key: "appname", Values: []string{"mysql_app_1"}},
			wantPVC:  types.SelectorRequirement{Key: "workloadpattern", Values: []string{"mysql_io_pvc"}},
		},
		{
			name:     "custom workload matched by name",
			pvcType:  config.PVCTypeRBD,
			workload: "postgres",
			wantPod:  types.SelectorRequirement{Key: "appname", Values: []string{"postgres"}},
			wantPVC:  types.SelectorRequirement{Key: "appname", Values: []string{"postgres"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := WorkloadDetails(tt.pvcType, tt.workload)
			if d.PodSelector.Key != tt.wantPod.Key || d.PodSelector.Values[0] != tt.wantPod.Values[0] {
				t.Errorf("pod selector = %+v, want %+v", d.PodSelector, tt.wantPod)
			}
			if d.PVCSelector.Key != tt.wantPVC.Key || d.PVCSelector.Values[0] != tt.wantPVC.Values[0] {
				t.Errorf("pvc selector = %+v, want %+v", d.PVCSelector, tt.wantPVC)
			}
		})
	}
}

func TestBuildUnprotected(t *testing.T) {
	cfg := &config.Config{Workload: config.WorkloadBusybox, PVCType: config.PVCTypeRBD}
	g := &types.WorkloadGroup{Index: 1, Name: "imp-busybox-rbd-1", Namespaces: []string{"imp-busybox-rbd-1"}}
	if p := Build(g, cfg, "policy-a"); p != nil {
		t.Fatalf("Build() = %+v, want nil for unprotected workload", p)
	}
}

func TestBuildDirect(t *testing.T) {
	cfg := &config.Config{
		Workload:        config.WorkloadBusybox,
		PVCType:         config.PVCTypeRBD,
		ProtectWorkload: true,
	}
	g := &types.WorkloadGroup{
		Index:      2,
		Name:       "imp-busybox-rbd-2",
		Namespaces: []string{"imp-busybox-rbd-2"},
		Cluster:    types.ClusterIdentity{Name: "cluster2"},
	}

	p := Build(g, cfg, "policy-a")
	if p == nil {
		t.Fatal("Build() = nil")
	}
	if p.Mode != types.ProtectionDirect {
		t.Errorf("Mode = %q, want direct", p.Mode)
	}
	if p.PolicyName != "policy-a" {
		t.Errorf("PolicyName = %q", p.PolicyName)
	}
	if p.PreferredCluster != "cluster2" {
		t.Errorf("PreferredCluster = %q", p.PreferredCluster)
	}
	if len(p.Namespaces) != 1 || p.Namespaces[0] != "imp-busybox-rbd-2" {
		t.Errorf("Namespaces = %v", p.Namespaces)
	}
	if p.PVCSelector.Key != "workloadpattern" {
		t.Errorf("PVCSelector = %+v", p.PVCSelector)
	}
	if len(p.Recipes) != 0 {
		t.Errorf("Recipes = %v, want none in direct mode", p.Recipes)
	}
	if p.VGRClassName != "" {
		t.Errorf("VGRClassName = %q, want empty without cg", p.VGRClassName)
	}
}

func TestBuildRecipePerNamespace(t *testing.T) {
	cfg := &config.Config{
		Workload:        config.WorkloadMySQL,
		PVCType:         config.PVCTypeRBD,
		ProtectWorkload: true,
		Recipe:          true,
	}
	g := &types.WorkloadGroup{
		Index: 1,
		Name:  "imp-mysql-rbd-rp-multi-1",
		Namespaces: []string{
			"imp-mysql-rbd-rp-multi-1-1",
			"imp-mysql-rbd-rp-multi-1-2",
		},
		Cluster: types.ClusterIdentity{Name: "cluster1"},
	}

	p := Build(g, cfg, "policy-a")
	if p == nil {
		t.Fatal("Build() = nil")
	}
	if p.Mode != types.ProtectionRecipe {
		t.Errorf("Mode = %q, want recipe", p.Mode)
	}
	if len(p.Recipes) != 2 {
		t.Fatalf("Recipes = %v, want one per namespace", p.Recipes)
	}
	for i, ns := range g.Namespaces {
		if p.Recipes[i].Name != ns || p.Recipes[i].Namespace != ns {
			t.Errorf("recipe %d = %+v, want name and namespace %q", i, p.Recipes[i], ns)
		}
	}
	if p.AppType != config.WorkloadMySQL {
		t.Errorf("AppType = %q", p.AppType)
	}
	// Recipe bodies still embed the workload selectors.
	if p.PodSelector.Key == "" || p.PVCSelector.Key == "" {
		t.Errorf("selectors missing in recipe mode: %+v / %+v", p.PodSelector, p.PVCSelector)
	}
}

func TestBuildConsistencyGroup(t *testing.T) {
	cfg := &config.Config{
		Workload:         config.WorkloadBusybox,
		PVCType:          config.PVCTypeRBD,
		ProtectWorkload:  true,
		ConsistencyGroup: true,
	}
	g := &types.WorkloadGroup{
		Index:      3,
		Name:       "imp-bb-rbd-3-cg",
		Namespaces: []string{"imp-bb-rbd-3-cg"},
		Cluster:    types.ClusterIdentity{Name: "cluster1"},
	}

	p := Build(g, cfg, "policy-a")
	if p == nil {
		t.Fatal("Build() = nil")
	}
	if !p.ConsistencyGroup {
		t.Error("ConsistencyGroup = false")
	}
	if p.VGRClassName != "vrgc-imp-bb-rbd-3-cg" {
		t.Errorf("VGRClassName = %q", p.VGRClassName)
	}
}
