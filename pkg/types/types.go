package types

// ClusterIdentity names a managed cluster and the kubeconfig used to reach it.
type ClusterIdentity struct {
	Name       string
	Kubeconfig string
}

// WorkloadGroup is one deployable unit: the namespaces it spans, the cluster
// it was assigned to and, once built, its DR protection descriptor.
type WorkloadGroup struct {
	Index      int    // 1-based position within the run
	Name       string // group base name; equals the namespace name for single-namespace groups
	Namespaces []string
	Cluster    ClusterIdentity
	Protection *Protection // nil when the workload is left unprotected
}

// ProtectionMode selects how a group's resources are matched for DR.
type ProtectionMode string

const (
	// ProtectionDirect matches resources with label selectors on the DRPC.
	ProtectionDirect ProtectionMode = "direct"
	// ProtectionRecipe delegates capture/recover ordering to a Recipe.
	ProtectionRecipe ProtectionMode = "recipe"
)

// SelectorRequirement is a single-key "In" match against resource labels.
type SelectorRequirement struct {
	Key    string
	Values []string
}

// RecipeRef points at a Recipe resource by name and namespace.
type RecipeRef struct {
	Name      string
	Namespace string
}

// Protection describes the DR artifacts a protected group needs. The pod and
// PVC selectors feed the DRPC in direct mode and the Recipe bodies in recipe
// mode.
type Protection struct {
	PolicyName       string
	PreferredCluster string
	Namespaces       []string
	Mode             ProtectionMode
	AppType          string
	PVCSelector      SelectorRequirement
	PodSelector      SelectorRequirement
	Recipes          []RecipeRef // recipe mode: one per namespace
	ConsistencyGroup bool
	VGRClassName     string // set when ConsistencyGroup is true
}
