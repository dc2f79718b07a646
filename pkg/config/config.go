package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"sigs.k8s.io/yaml"

	"github.com/prsurve/deploy-dr-workloads/pkg/types"
)

// Workload kinds with curated selectors. Any other non-empty value is treated
// as a custom workload and matched by its own name.
const (
	WorkloadBusybox = "busybox"
	WorkloadMySQL   = "mysql"
	WorkloadVM      = "vm"
)

// Storage kinds a workload's PVCs can use.
const (
	PVCTypeRBD    = "rbd"
	PVCTypeCephFS = "cephfs"
	PVCTypeMix    = "mix"
)

// Deployment models.
const (
	TypeAppSet       = "appset"
	TypeSubscription = "sub"
	TypeDistributed  = "dist"
)

// Cluster selection strategies.
const (
	StrategyRoundRobin  = "round-robin"
	StrategyRandom      = "random"
	StrategyLeastLoaded = "least-loaded"
)

// Config carries one run's worth of settings, assembled from command-line
// flags and an optional YAML defaults file.
type Config struct {
	Workload         string
	PVCType          string
	WorkloadType     string
	WorkloadCount    int
	MultiNSWorkload  int
	ProtectWorkload  bool
	Recipe           bool
	ConsistencyGroup bool
	NSPrefix         string
	Strategy         string
	DeployOn         string
	DRPolicyName     string
	Cluster1         types.ClusterIdentity
	Cluster2         types.ClusterIdentity
	OutputDir        string
	TemplateDir      string
	DryRun           bool
	StoreCredsFile   string
	StoreKeepLast    int
}

// Normalize folds accepted spelling variants into canonical form. Strategy
// names may be written with underscores (round_robin) or dashes.
func (c *Config) Normalize() {
	c.Strategy = strings.ReplaceAll(c.Strategy, "_", "-")
}

// Validate checks the whole configuration and reports every violation at
// once rather than stopping at the first.
func (c *Config) Validate() error {
	var errs []error

	if c.Cluster1.Name == "" {
		errs = append(errs, errors.New("c1-name is required"))
	}
	if c.Cluster1.Kubeconfig == "" {
		errs = append(errs, errors.New("c1-kubeconfig is required"))
	}
	if c.Cluster2.Name == "" {
		errs = append(errs, errors.New("c2-name is required"))
	}
	if c.Cluster2.Kubeconfig == "" {
		errs = append(errs, errors.New("c2-kubeconfig is required"))
	}
	if c.Cluster1.Name != "" && c.Cluster1.Name == c.Cluster2.Name {
		errs = append(errs, fmt.Errorf("c1-name and c2-name must differ (both %q)", c.Cluster1.Name))
	}
	if c.Workload == "" {
		errs = append(errs, errors.New("workload is required"))
	}
	switch c.PVCType {
	case PVCTypeRBD, PVCTypeCephFS, PVCTypeMix:
	case "":
		errs = append(errs, errors.New("pvc-type is required"))
	default:
		errs = append(errs, fmt.Errorf("pvc-type must be one of rbd, cephfs, mix (got %q)", c.PVCType))
	}
	switch c.WorkloadType {
	case TypeAppSet, TypeSubscription, TypeDistributed:
	case "":
		errs = append(errs, errors.New("workload-type is required"))
	default:
		errs = append(errs, fmt.Errorf("workload-type must be one of appset, sub, dist (got %q)", c.WorkloadType))
	}
	if c.WorkloadCount < 1 {
		errs = append(errs, fmt.Errorf("workload-count must be at least 1 (got %d)", c.WorkloadCount))
	}
	if c.MultiNSWorkload < 1 {
		errs = append(errs, fmt.Errorf("multi-ns-workload must be at least 1 (got %d)", c.MultiNSWorkload))
	}
	switch c.Strategy {
	case StrategyRoundRobin, StrategyRandom, StrategyLeastLoaded:
	default:
		errs = append(errs, fmt.Errorf("strategy must be one of round-robin, random, least-loaded (got %q)", c.Strategy))
	}
	if c.DeployOn != "" && c.DeployOn != c.Cluster1.Name && c.DeployOn != c.Cluster2.Name {
		errs = append(errs, fmt.Errorf("deploy-on %q matches neither cluster name", c.DeployOn))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output-dir is required"))
	}

	if c.MultiNSWorkload > 1 && c.WorkloadType != TypeDistributed {
		errs = append(errs, errors.New("multi-ns-workload above 1 is only supported with workload-type dist"))
	}
	if c.ConsistencyGroup && c.PVCType != PVCTypeRBD {
		errs = append(errs, errors.New("consistency groups (cg) are only supported with pvc-type rbd"))
	}
	if c.Recipe && c.WorkloadType != TypeDistributed {
		errs = append(errs, errors.New("recipe is only supported with workload-type dist"))
	}
	if c.Workload == WorkloadVM && c.PVCType == PVCTypeCephFS {
		errs = append(errs, errors.New("vm workloads do not support pvc-type cephfs"))
	}

	return utilerrors.NewAggregate(errs)
}

// File mirrors the flag set for YAML-supplied defaults. Keys are the flag
// names; pointer fields distinguish absent values from explicit zeros.
type File struct {
	C1Name           string `json:"c1-name,omitempty"`
	C1Kubeconfig     string `json:"c1-kubeconfig,omitempty"`
	C2Name           string `json:"c2-name,omitempty"`
	C2Kubeconfig     string `json:"c2-kubeconfig,omitempty"`
	Workload         string `json:"workload,omitempty"`
	PVCType          string `json:"pvc-type,omitempty"`
	WorkloadType     string `json:"workload-type,omitempty"`
	WorkloadCount    *int   `json:"workload-count,omitempty"`
	MultiNSWorkload  *int   `json:"multi-ns-workload,omitempty"`
	ProtectWorkload  *bool  `json:"protect-workload,omitempty"`
	Recipe           *bool  `json:"recipe,omitempty"`
	ConsistencyGroup *bool  `json:"cg,omitempty"`
	NSPrefix         string `json:"ns-prefix,omitempty"`
	Strategy         string `json:"strategy,omitempty"`
	DeployOn         string `json:"deploy-on,omitempty"`
	DRPolicyName     string `json:"drpolicy,omitempty"`
	OutputDir        string `json:"output-dir,omitempty"`
	TemplateDir      string `json:"template-dir,omitempty"`
	DryRun           *bool  `json:"dry-run,omitempty"`
	StoreCredsFile   string `json:"store-credentials,omitempty"`
	StoreKeepLast    *int   `json:"store-keep-last,omitempty"`
}

// LoadFile reads a YAML defaults file. Unknown keys are rejected so typos
// surface instead of silently doing nothing.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &f, nil
}

// Merge copies file values into cfg for every setting whose flag was not
// changed on the command line: flags win over the file, the file wins over
// built-in defaults. changed reports whether the named flag was set
// explicitly.
func Merge(cfg *Config, f *File, changed func(name string) bool) {
	if f == nil {
		return
	}
	if f.C1Name != "" && !changed("c1-name") {
		cfg.Cluster1.Name = f.C1Name
	}
	if f.C1Kubeconfig != "" && !changed("c1-kubeconfig") {
		cfg.Cluster1.Kubeconfig = f.C1Kubeconfig
	}
	if f.C2Name != "" && !changed("c2-name") {
		cfg.Cluster2.Name = f.C2Name
	}
	if f.C2Kubeconfig != "" && !changed("c2-kubeconfig") {
		cfg.Cluster2.Kubeconfig = f.C2Kubeconfig
	}
	if f.Workload != "" && !changed("workload") {
		cfg.Workload = f.Workload
	}
	if f.PVCType != "" && !changed("pvc-type") {
		cfg.PVCType = f.PVCType
	}
	if f.WorkloadType != "" && !changed("workload-type") {
		cfg.WorkloadType = f.WorkloadType
	}
	if f.WorkloadCount != nil && !changed("workload-count") {
		cfg.WorkloadCount = *f.WorkloadCount
	}
	if f.MultiNSWorkload != nil && !changed("multi-ns-workload") {
		cfg.MultiNSWorkload = *f.MultiNSWorkload
	}
	if f.ProtectWorkload != nil && !changed("protect-workload") {
		cfg.ProtectWorkload = *f.ProtectWorkload
	}
	if f.Recipe != nil && !changed("recipe") {
		cfg.Recipe = *f.Recipe
	}
	if f.ConsistencyGroup != nil && !changed("cg") {
		cfg.ConsistencyGroup = *f.ConsistencyGroup
	}
	if f.NSPrefix != "" && !changed("ns-prefix") {
		cfg.NSPrefix = f.NSPrefix
	}
	if f.Strategy != "" && !changed("strategy") {
		cfg.Strategy = f.Strategy
	}
	if f.DeployOn != "" && !changed("deploy-on") {
		cfg.DeployOn = f.DeployOn
	}
	if f.DRPolicyName != "" && !changed("drpolicy") {
		cfg.DRPolicyName = f.DRPolicyName
	}
	if f.OutputDir != "" && !changed("output-dir") {
		cfg.OutputDir = f.OutputDir
	}
	if f.TemplateDir != "" && !changed("template-dir") {
		cfg.TemplateDir = f.TemplateDir
	}
	if f.DryRun != nil && !changed("dry-run") {
		cfg.DryRun = *f.DryRun
	}
	if f.StoreCredsFile != "" && !changed("store-credentials") {
		cfg.StoreCredsFile = f.StoreCredsFile
	}
	if f.StoreKeepLast != nil && !changed("store-keep-last") {
		cfg.StoreKeepLast = *f.StoreKeepLast
	}
}
