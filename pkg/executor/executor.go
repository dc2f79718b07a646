package executor

import (
	"context"
	"fmt"
	"sort"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/klog/v2"

	"github.com/prsurve/deploy-dr-workloads/pkg/types"
)

// Executor performs the cluster-side operations of the deploy loop.
type Executor interface {
	CreateNamespace(ctx context.Context, cluster types.ClusterIdentity, name string) error
	Apply(ctx context.Context, cluster types.ClusterIdentity, objs []*unstructured.Unstructured) error
	ListDRPolicies(ctx context.Context, cluster types.ClusterIdentity) ([]string, error)
}

// resourceInfo locates one kind on the API server.
type resourceInfo struct {
	gvr        schema.GroupVersionResource
	namespaced bool
}

// knownResources maps every kind the renderer emits. A static table keeps
// the dynamic client off the discovery API.
var knownResources = map[schema.GroupVersionKind]resourceInfo{
	{Group: "cluster.open-cluster-management.io", Version: "v1beta1", Kind: "Placement"}: {
		gvr:        schema.GroupVersionResource{Group: "cluster.open-cluster-management.io", Version: "v1beta1", Resource: "placements"},
		namespaced: true,
	},
	{Group: "ramendr.openshift.io", Version: "v1alpha1", Kind: "DRPlacementControl"}: {
		gvr:        schema.GroupVersionResource{Group: "ramendr.openshift.io", Version: "v1alpha1", Resource: "drplacementcontrols"},
		namespaced: true,
	},
	{Group: "ramendr.openshift.io", Version: "v1alpha1", Kind: "Recipe"}: {
		gvr:        schema.GroupVersionResource{Group: "ramendr.openshift.io", Version: "v1alpha1", Resource: "recipes"},
		namespaced: true,
	},
	{Group: "replication.storage.openshift.io", Version: "v1alpha1", Kind: "VolumeGroupReplicationClass"}: {
		gvr:        schema.GroupVersionResource{Group: "replication.storage.openshift.io", Version: "v1alpha1", Resource: "volumegroupreplicationclasses"},
		namespaced: false,
	},
	{Group: "", Version: "v1", Kind: "Secret"}: {
		gvr:        schema.GroupVersionResource{Group: "", Version: "v1", Resource: "secrets"},
		namespaced: true,
	},
}

var drPolicyGVR = schema.GroupVersionResource{Group: "ramendr.openshift.io", Version: "v1alpha1", Resource: "drpolicies"}

type clusterClients struct {
	core kubernetes.Interface
	dyn  dynamic.Interface
}

// Kube reaches the clusters with a typed clientset for namespaces and a
// dynamic client for the DR CRDs. Clients are built lazily per cluster and
// reused. Not safe for concurrent use; the deploy loop is sequential.
type Kube struct {
	factory func(kubeconfig string) (kubernetes.Interface, dynamic.Interface, error)
	clients map[string]clusterClients
}

func NewKube() *Kube {
	return &Kube{factory: buildClients, clients: map[string]clusterClients{}}
}

func (k *Kube) clientsFor(cluster types.ClusterIdentity) (clusterClients, error) {
	if c, ok := k.clients[cluster.Name]; ok {
		return c, nil
	}
	core, dyn, err := k.factory(cluster.Kubeconfig)
	if err != nil {
		return clusterClients{}, fmt.Errorf("build clients for cluster %s: %w", cluster.Name, err)
	}
	c := clusterClients{core: core, dyn: dyn}
	k.clients[cluster.Name] = c
	return c, nil
}

// CreateNamespace creates the namespace, tolerating one that already exists.
func (k *Kube) CreateNamespace(ctx context.Context, cluster types.ClusterIdentity, name string) error {
	c, err := k.clientsFor(cluster)
	if err != nil {
		return err
	}
	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: name}}
	_, err = c.core.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		klog.V(2).Infof("namespace %s already exists on %s", name, cluster.Name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("create namespace %s on %s: %w", name, cluster.Name, err)
	}
	klog.V(4).Infof("created namespace %s on %s", name, cluster.Name)
	return nil
}

// Apply creates each object on the cluster in order, tolerating objects that
// already exist. It stops at the first real error.
func (k *Kube) Apply(ctx context.Context, cluster types.ClusterIdentity, objs []*unstructured.Unstructured) error {
	c, err := k.clientsFor(cluster)
	if err != nil {
		return err
	}
	for _, obj := range objs {
		gvk := obj.GroupVersionKind()
		info, ok := knownResources[gvk]
		if !ok {
			return fmt.Errorf("no resource mapping for %s", gvk)
		}

		var createErr error
		if info.namespaced {
			_, createErr = c.dyn.Resource(info.gvr).Namespace(obj.GetNamespace()).Create(ctx, obj, metav1.CreateOptions{})
		} else {
			_, createErr = c.dyn.Resource(info.gvr).Create(ctx, obj, metav1.CreateOptions{})
		}
		if apierrors.IsAlreadyExists(createErr) {
			klog.V(2).Infof("%s %s already exists on %s", gvk.Kind, obj.GetName(), cluster.Name)
			continue
		}
		if createErr != nil {
			return fmt.Errorf("create %s %s on %s: %w", gvk.Kind, obj.GetName(), cluster.Name, createErr)
		}
		klog.V(4).Infof("created %s %s on %s", gvk.Kind, obj.GetName(), cluster.Name)
	}
	return nil
}

// ListDRPolicies returns the DRPolicy names known to the cluster, sorted.
func (k *Kube) ListDRPolicies(ctx context.Context, cluster types.ClusterIdentity) ([]string, error) {
	c, err := k.clientsFor(cluster)
	if err != nil {
		return nil, err
	}
	list, err := c.dyn.Resource(drPolicyGVR).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list drpolicies on %s: %w", cluster.Name, err)
	}
	names := make([]string, 0, len(list.Items))
	for _, item := range list.Items {
		names = append(names, item.GetName())
	}
	sort.Strings(names)
	return names, nil
}

// buildClients resolves the rest config the usual way: explicit kubeconfig,
// then in-cluster, then the default loading rules.
func buildClients(kubeconfig string) (kubernetes.Interface, dynamic.Interface, error) {
	var cfg *rest.Config
	var err error

	if kubeconfig != "" {
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	} else {
		cfg, err = rest.InClusterConfig()
		if err != nil {
			loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
			cfg, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, &clientcmd.ConfigOverrides{}).ClientConfig()
		}
	}
	if err != nil {
		return nil, nil, err
	}

	core, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	dyn, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	return core, dyn, nil
}
