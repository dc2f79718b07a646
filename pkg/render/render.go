package render

import (
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/yaml"

	"github.com/prsurve/deploy-dr-workloads/pkg/config"
	"github.com/prsurve/deploy-dr-workloads/pkg/types"
)

// drOpsNamespace is where ACM keeps the placement resources of discovered
// applications.
const drOpsNamespace = "openshift-dr-ops"

// cgEnabledAnnotation marks a DRPC as consistency-group enabled.
const cgEnabledAnnotation = "drplacementcontrol.ramendr.openshift.io/is-cg-enabled"

// Document is one rendered manifest plus where it must be applied. Placement
// and DRPC belong on the assigned cluster only; recipes, replication classes
// and VM secrets have to exist on both clusters for failover to work.
type Document struct {
	Object       *unstructured.Unstructured
	BothClusters bool
}

// Renderer turns workload groups into manifest documents. Parsed templates
// are cached on first use and deep-copied per render, so one group's
// mutations never bleed into the next.
type Renderer struct {
	source Source
	cache  map[string]*unstructured.Unstructured
}

func NewRenderer(source Source) *Renderer {
	return &Renderer{source: source, cache: map[string]*unstructured.Unstructured{}}
}

// Render produces the manifests for one group in apply order: placement,
// DRPC, one recipe per namespace, the replication class, then VM secrets.
// Unprotected groups yield no DR artifacts; VM secrets are emitted for vm
// workloads regardless of protection.
func (r *Renderer) Render(group *types.WorkloadGroup, cfg *config.Config) ([]Document, error) {
	var docs []Document

	if p := group.Protection; p != nil {
		placement, err := r.placement(group)
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{Object: placement})

		drpc, err := r.drpc(group, p)
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{Object: drpc})

		if p.Mode == types.ProtectionRecipe {
			for _, ref := range p.Recipes {
				recipe, err := r.recipe(ref, p)
				if err != nil {
					return nil, err
				}
				docs = append(docs, Document{Object: recipe, BothClusters: true})
			}
		}

		if p.ConsistencyGroup {
			class, err := r.replicationClass(p)
			if err != nil {
				return nil, err
			}
			docs = append(docs, Document{Object: class, BothClusters: true})
		}
	}

	if cfg.Workload == config.WorkloadVM {
		for _, ns := range group.Namespaces {
			secret, err := r.vmSecret(ns)
			if err != nil {
				return nil, err
			}
			docs = append(docs, Document{Object: secret, BothClusters: true})
		}
	}

	return docs, nil
}

// load fetches and parses a template, serving deep copies from the cache.
func (r *Renderer) load(name string) (*unstructured.Unstructured, error) {
	if obj, ok := r.cache[name]; ok {
		return obj.DeepCopy(), nil
	}
	data, err := r.source.Template(name)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	obj := &unstructured.Unstructured{Object: m}
	r.cache[name] = obj
	return obj.DeepCopy(), nil
}

func (r *Renderer) placement(group *types.WorkloadGroup) (*unstructured.Unstructured, error) {
	obj, err := r.load(TemplatePlacement)
	if err != nil {
		return nil, err
	}
	obj.SetName(group.Name + "-placs-1")
	obj.SetNamespace(drOpsNamespace)

	predicates := []interface{}{
		map[string]interface{}{
			"requiredClusterSelector": map[string]interface{}{
				"labelSelector": map[string]interface{}{
					"matchExpressions": matchIn("name", group.Cluster.Name),
				},
			},
		},
	}
	if err := unstructured.SetNestedSlice(obj.Object, predicates, "spec", "predicates"); err != nil {
		return nil, fmt.Errorf("update placement predicates: %w", err)
	}
	return obj, nil
}

func (r *Renderer) drpc(group *types.WorkloadGroup, p *types.Protection) (*unstructured.Unstructured, error) {
	obj, err := r.load(TemplateDRPC)
	if err != nil {
		return nil, err
	}
	obj.SetName(group.Name)
	obj.SetNamespace(drOpsNamespace)

	s := fieldSetter{obj: obj.Object}
	s.set(p.PolicyName, "spec", "drPolicyRef", "name")
	s.set(group.Name+"-placs-1", "spec", "placementRef", "name")
	s.set(drOpsNamespace, "spec", "placementRef", "namespace")
	s.set(p.PreferredCluster, "spec", "preferredCluster")
	s.setStringSlice(p.Namespaces, "spec", "protectedNamespaces")

	switch p.Mode {
	case types.ProtectionRecipe:
		// The recipe owns resource selection: the first namespace's recipe
		// drives capture for the whole group.
		s.set(map[string]interface{}{}, "spec", "pvcSelector")
		unstructured.RemoveNestedField(obj.Object, "spec", "kubeObjectProtection", "kubeObjectSelector")
		s.set(p.Recipes[0].Name, "spec", "kubeObjectProtection", "recipeRef", "name")
		s.set(p.Recipes[0].Namespace, "spec", "kubeObjectProtection", "recipeRef", "namespace")
	default:
		s.setSlice(matchIn(p.PVCSelector.Key, p.PVCSelector.Values...), "spec", "pvcSelector", "matchExpressions")
		s.setSlice(matchIn(p.PodSelector.Key, p.PodSelector.Values...), "spec", "kubeObjectProtection", "kubeObjectSelector", "matchExpressions")
	}
	if s.err != nil {
		return nil, fmt.Errorf("update drpc fields: %w", s.err)
	}

	if p.ConsistencyGroup {
		annotations := obj.GetAnnotations()
		if annotations == nil {
			annotations = map[string]string{}
		}
		annotations[cgEnabledAnnotation] = "true"
		obj.SetAnnotations(annotations)
	}
	return obj, nil
}

func (r *Renderer) recipe(ref types.RecipeRef, p *types.Protection) (*unstructured.Unstructured, error) {
	obj, err := r.load(TemplateRecipe)
	if err != nil {
		return nil, err
	}
	obj.SetName(ref.Name)
	obj.SetNamespace(ref.Namespace)

	s := fieldSetter{obj: obj.Object}
	s.set(p.AppType, "spec", "appType")
	s.setSlice([]interface{}{
		map[string]interface{}{
			"name":               ref.Name,
			"type":               "resource",
			"backupRef":          ref.Name,
			"includedNamespaces": []interface{}{ref.Namespace},
			"labelSelector": map[string]interface{}{
				"matchExpressions": matchIn(p.PodSelector.Key, p.PodSelector.Values...),
			},
		},
	}, "spec", "groups")
	s.setStringSlice([]string{ref.Namespace}, "spec", "volumes", "includedNamespaces")
	s.setSlice(matchIn(p.PVCSelector.Key, p.PVCSelector.Values...), "spec", "volumes", "labelSelector", "matchExpressions")
	s.setSlice([]interface{}{
		map[string]interface{}{
			"name": "backup",
			"sequence": []interface{}{
				map[string]interface{}{"hook": "check-replicas/replicasReady"},
				map[string]interface{}{"group": ref.Name},
			},
		},
		map[string]interface{}{
			"name": "restore",
			"sequence": []interface{}{
				map[string]interface{}{"group": ref.Name},
			},
		},
	}, "spec", "workflows")
	if s.err != nil {
		return nil, fmt.Errorf("update recipe fields: %w", s.err)
	}

	// The check hook carries static probe settings; only its target moves.
	hooks, found, err := unstructured.NestedSlice(obj.Object, "spec", "hooks")
	if err != nil || !found || len(hooks) == 0 {
		return nil, fmt.Errorf("recipe template has no usable spec.hooks: %v", err)
	}
	hook, ok := hooks[0].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("recipe template spec.hooks[0] is not a mapping")
	}
	hook["namespace"] = ref.Namespace
	hook["nameSelector"] = p.AppType + "-*"
	if err := unstructured.SetNestedSlice(obj.Object, hooks, "spec", "hooks"); err != nil {
		return nil, fmt.Errorf("update recipe hooks: %w", err)
	}

	return obj, nil
}

func (r *Renderer) replicationClass(p *types.Protection) (*unstructured.Unstructured, error) {
	obj, err := r.load(TemplateVGRClass)
	if err != nil {
		return nil, err
	}
	obj.SetName(p.VGRClassName)
	return obj, nil
}

func (r *Renderer) vmSecret(namespace string) (*unstructured.Unstructured, error) {
	obj, err := r.load(TemplateVMSecret)
	if err != nil {
		return nil, err
	}
	obj.SetNamespace(namespace)
	return obj, nil
}

// matchIn builds a single-expression matchExpressions list.
func matchIn(key string, values ...string) []interface{} {
	vals := make([]interface{}, 0, len(values))
	for _, v := range values {
		vals = append(vals, v)
	}
	return []interface{}{
		map[string]interface{}{
			"key":      key,
			"operator": "In",
			"values":   vals,
		},
	}
}

// fieldSetter applies nested-field updates and keeps the first error.
type fieldSetter struct {
	obj map[string]interface{}
	err error
}

func (s *fieldSetter) set(value interface{}, fields ...string) {
	if s.err != nil {
		return
	}
	s.err = unstructured.SetNestedField(s.obj, value, fields...)
}

func (s *fieldSetter) setSlice(value []interface{}, fields ...string) {
	if s.err != nil {
		return
	}
	s.err = unstructured.SetNestedSlice(s.obj, value, fields...)
}

func (s *fieldSetter) setStringSlice(values []string, fields ...string) {
	if s.err != nil {
		return
	}
	s.err = unstructured.SetNestedStringSlice(s.obj, values, fields...)
}
