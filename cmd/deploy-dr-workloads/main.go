package main

import (
	"context"
	goflag "flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prsurve/deploy-dr-workloads/pkg/artifact"
	"github.com/prsurve/deploy-dr-workloads/pkg/config"
	"github.com/prsurve/deploy-dr-workloads/pkg/deploy"
	"github.com/prsurve/deploy-dr-workloads/pkg/executor"
	"github.com/prsurve/deploy-dr-workloads/pkg/render"
	"github.com/prsurve/deploy-dr-workloads/pkg/stats"

	flag "github.com/spf13/pflag"
	"k8s.io/klog/v2"
)

func main() {
	var cfg config.Config
	var configFile string

	flag.StringVar(&cfg.Cluster1.Name, "c1-name", "", "First managed cluster name (required)")
	flag.StringVar(&cfg.Cluster1.Kubeconfig, "c1-kubeconfig", "", "Kubeconfig path for the first cluster (required)")
	flag.StringVar(&cfg.Cluster2.Name, "c2-name", "", "Second managed cluster name (required)")
	flag.StringVar(&cfg.Cluster2.Kubeconfig, "c2-kubeconfig", "", "Kubeconfig path for the second cluster (required)")
	flag.StringVarP(&cfg.Workload, "workload", "w", "", "Workload to deploy: busybox, mysql, vm or a custom name (required)")
	flag.StringVar(&cfg.PVCType, "pvc-type", config.PVCTypeRBD, "PVC storage type: rbd, cephfs or mix")
	flag.StringVarP(&cfg.WorkloadType, "workload-type", "t", config.TypeDistributed, "Deployment model: appset, sub or dist")
	flag.IntVarP(&cfg.WorkloadCount, "workload-count", "c", 1, "Number of workload groups to deploy")
	flag.IntVar(&cfg.MultiNSWorkload, "multi-ns-workload", 1, "Namespaces per group (dist only)")
	flag.BoolVar(&cfg.ProtectWorkload, "protect-workload", false, "Create DR protection for each group")
	flag.BoolVar(&cfg.Recipe, "recipe", false, "Protect via Recipe resources (dist only)")
	flag.BoolVar(&cfg.ConsistencyGroup, "cg", false, "Enable consistency groups (rbd only)")
	flag.StringVar(&cfg.NSPrefix, "ns-prefix", "", "Extra prefix for namespace names")
	flag.StringVar(&cfg.Strategy, "strategy", config.StrategyRoundRobin, "Cluster selection strategy: round-robin, random or least-loaded")
	flag.StringVar(&cfg.DeployOn, "deploy-on", "", "Pin every group to this cluster, bypassing the strategy")
	flag.StringVar(&cfg.DRPolicyName, "drpolicy", "", "DRPolicy to bind protected workloads to (default: first available)")
	flag.StringVarP(&cfg.OutputDir, "output-dir", "d", ".", "Directory for the combined manifest file")
	flag.StringVar(&cfg.TemplateDir, "template-dir", "", "Directory with manifest templates (default: built-in)")
	flag.BoolVar(&cfg.DryRun, "dry-run", false, "Render everything without touching the clusters")
	flag.StringVar(&cfg.StoreCredsFile, "store-credentials", "", "JSON credentials file for uploading outputs to object storage")
	flag.IntVar(&cfg.StoreKeepLast, "store-keep-last", 0, "Keep only this many uploaded outputs per run shape (0 = keep all)")
	flag.StringVar(&configFile, "config", "", "YAML file with flag defaults")

	klog.InitFlags(nil)
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	flag.Parse()

	if configFile != "" {
		f, err := config.LoadFile(configFile)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		config.Merge(&cfg, f, flag.CommandLine.Changed)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, &cfg, executor.NewKube()); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, exec executor.Executor) error {
	source := render.BuiltinSource()
	if cfg.TemplateDir != "" {
		source = render.DirSource(cfg.TemplateDir)
	}
	runner := deploy.NewRunner(cfg, exec, render.NewRenderer(source))

	fmt.Printf("Deploying %d %s group(s) (%s/%s) across %s and %s...\n",
		cfg.WorkloadCount, cfg.Workload, cfg.WorkloadType, cfg.PVCType, cfg.Cluster1.Name, cfg.Cluster2.Name)
	if cfg.DryRun {
		fmt.Println("=== DRY RUN === (no cluster changes will be made)")
	}

	runStats, docs, runErr := runner.Run(ctx)

	// Groups that succeeded before an abort still get their manifests written.
	outPath := ""
	if len(docs) > 0 {
		outPath = filepath.Join(cfg.OutputDir, artifact.FileName(cfg))
		if err := artifact.WriteStream(outPath, docs); err != nil {
			if runErr != nil {
				return fmt.Errorf("%w (and writing the partial output failed: %v)", runErr, err)
			}
			return fmt.Errorf("write combined manifest: %w", err)
		}
		fmt.Printf("Wrote %d document(s) to %s\n", len(docs), outPath)
	}
	if runErr != nil {
		return runErr
	}

	if outPath == "" {
		fmt.Println("No YAML documents were generated.")
	} else if cfg.StoreCredsFile != "" && !cfg.DryRun {
		if err := uploadOutput(ctx, cfg, outPath); err != nil {
			return fmt.Errorf("upload combined manifest: %w", err)
		}
	}

	fmt.Print(formatSummary(runStats, outPath))

	if runStats.Failed > 0 {
		return fmt.Errorf("%d of %d group(s) failed (see above)", runStats.Failed, runStats.RequestedGroups)
	}
	return nil
}

// uploadOutput archives the combined manifest under a timestamped key and
// prunes old uploads beyond the retention count.
func uploadOutput(ctx context.Context, cfg *config.Config, path string) error {
	creds, err := artifact.LoadStoreCredentials(cfg.StoreCredsFile)
	if err != nil {
		return err
	}
	store, err := artifact.NewStore(creds)
	if err != nil {
		return err
	}

	prefix := strings.TrimSuffix(filepath.Base(path), ".yaml") + "/"
	key := prefix + time.Now().UTC().Format("20060102-150405") + ".yaml"
	if err := store.Upload(ctx, path, key); err != nil {
		return err
	}
	fmt.Printf("Uploaded %s to bucket %s\n", key, creds.Bucket)

	if cfg.StoreKeepLast > 0 {
		deleted, err := store.Rotate(ctx, prefix, cfg.StoreKeepLast)
		if err != nil {
			return err
		}
		if len(deleted) > 0 {
			fmt.Printf("Pruned %d old upload(s)\n", len(deleted))
		}
	}
	return nil
}

func formatSummary(s stats.RunStats, outPath string) string {
	var b strings.Builder
	b.WriteString("\n=== Deploy Summary ===\n")
	fmt.Fprintf(&b, "  Groups:     %d requested, %d succeeded, %d failed\n", s.RequestedGroups, s.Succeeded, s.Failed)
	fmt.Fprintf(&b, "  Namespaces: %d requested (%d per group)\n", s.RequestedNamespaces, s.NamespacesPerGroup)

	clusters := make([]string, 0, len(s.ClusterNamespaces))
	for name := range s.ClusterNamespaces {
		clusters = append(clusters, name)
	}
	sort.Strings(clusters)
	for _, name := range clusters {
		fmt.Fprintf(&b, "  %s: %d namespace(s)\n", name, s.ClusterNamespaces[name])
	}

	for _, f := range s.Failures {
		fmt.Fprintf(&b, "  FAIL  group %d (%s): %v\n", f.Index, f.Name, f.Err)
	}
	if outPath != "" {
		fmt.Fprintf(&b, "  Output:     %s\n", outPath)
	}
	fmt.Fprintf(&b, "  Elapsed:    %s\n", s.Elapsed.Round(time.Millisecond))
	return b.String()
}
