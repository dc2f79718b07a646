package deploy

import (
	"context"
	"errors"
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	"github.com/prsurve/deploy-dr-workloads/pkg/cluster"
	"github.com/prsurve/deploy-dr-workloads/pkg/config"
	"github.com/prsurve/deploy-dr-workloads/pkg/executor"
	"github.com/prsurve/deploy-dr-workloads/pkg/plan"
	"github.com/prsurve/deploy-dr-workloads/pkg/protect"
	"github.com/prsurve/deploy-dr-workloads/pkg/render"
	"github.com/prsurve/deploy-dr-workloads/pkg/stats"
	"github.com/prsurve/deploy-dr-workloads/pkg/types"
)

// ErrNoDRPolicy reports that protection was requested but no DRPolicy exists
// to bind the workloads to.
var ErrNoDRPolicy = errors.New("no DRPolicy found")

// Runner drives one deployment run: plan the groups, pick a cluster per
// group, build protection, render manifests and apply them.
type Runner struct {
	cfg      *config.Config
	registry *cluster.Registry
	selector *cluster.Selector
	renderer *render.Renderer
	exec     executor.Executor
	clock    clock.PassiveClock
}

func NewRunner(cfg *config.Config, exec executor.Executor, renderer *render.Renderer) *Runner {
	registry := cluster.NewRegistry(cfg.Cluster1, cfg.Cluster2)
	return &Runner{
		cfg:      cfg,
		registry: registry,
		selector: cluster.NewSelector(registry, cfg.Strategy, cfg.DeployOn),
		renderer: renderer,
		exec:     exec,
		clock:    clock.RealClock{},
	}
}

// Run executes the whole deployment and returns the run statistics plus the
// rendered documents of every successful group, in group order. A group that
// fails to apply is recorded and skipped; the loop keeps going. A non-nil
// error means the run aborted on a condition every remaining group would hit
// too: invalid config, no usable DRPolicy, or a missing template.
func (r *Runner) Run(ctx context.Context) (stats.RunStats, []*unstructured.Unstructured, error) {
	groups, err := plan.Plan(r.cfg)
	if err != nil {
		return stats.RunStats{}, nil, err
	}

	collector := stats.NewCollector(len(groups), r.cfg.MultiNSWorkload, r.clock)

	policyName := r.cfg.DRPolicyName
	if r.cfg.ProtectWorkload && policyName == "" {
		policyName, err = r.resolvePolicy(ctx)
		if err != nil {
			return collector.Finalize(), nil, err
		}
	}

	var combined []*unstructured.Unstructured
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return collector.Finalize(), combined, err
		}
		fmt.Printf("--- Processing group %d/%d (%s) ---\n", group.Index, len(groups), group.Name)

		cl, err := r.selector.Select(group)
		if err != nil {
			return collector.Finalize(), combined, err
		}
		group.Cluster = cl
		group.Protection = protect.Build(group, r.cfg, policyName)

		docs, err := r.renderer.Render(group, r.cfg)
		if err != nil {
			// A template problem would fail every remaining group the same way.
			return collector.Finalize(), combined, err
		}

		if err := r.applyGroup(ctx, group, docs); err != nil {
			fmt.Printf("  FAIL  %s: %v\n", group.Name, err)
			collector.Record(group, err)
			continue
		}

		for _, d := range docs {
			combined = append(combined, d.Object)
		}
		collector.Record(group, nil)
		fmt.Printf("  OK    %s -> %s (%d namespace(s))\n", group.Name, cl.Name, len(group.Namespaces))
	}

	return collector.Finalize(), combined, nil
}

// resolvePolicy picks the first DRPolicy visible from the first cluster.
// Listing is read-only, so it runs in dry-run mode too.
func (r *Runner) resolvePolicy(ctx context.Context) (string, error) {
	names, err := r.exec.ListDRPolicies(ctx, r.registry.First())
	if err != nil {
		return "", fmt.Errorf("resolve drpolicy: %w", err)
	}
	if len(names) == 0 {
		return "", ErrNoDRPolicy
	}
	klog.V(2).Infof("using DRPolicy %s (%d available)", names[0], len(names))
	return names[0], nil
}

// applyGroup creates the group's namespaces on both clusters so failover has
// somewhere to land, then applies the documents: everything to the assigned
// cluster, the shared ones mirrored to the peer.
func (r *Runner) applyGroup(ctx context.Context, group *types.WorkloadGroup, docs []render.Document) error {
	if r.cfg.DryRun {
		klog.V(2).Infof("dry-run: skipping apply for %s", group.Name)
		return nil
	}

	peer := r.registry.Peer(group.Cluster.Name)
	for _, ns := range group.Namespaces {
		if err := r.exec.CreateNamespace(ctx, group.Cluster, ns); err != nil {
			return err
		}
		if err := r.exec.CreateNamespace(ctx, peer, ns); err != nil {
			return err
		}
	}

	var assigned, mirrored []*unstructured.Unstructured
	for _, d := range docs {
		assigned = append(assigned, d.Object)
		if d.BothClusters {
			mirrored = append(mirrored, d.Object)
		}
	}
	if len(assigned) > 0 {
		if err := r.exec.Apply(ctx, group.Cluster, assigned); err != nil {
			return err
		}
	}
	if len(mirrored) > 0 {
		if err := r.exec.Apply(ctx, peer, mirrored); err != nil {
			return err
		}
	}
	return nil
}
