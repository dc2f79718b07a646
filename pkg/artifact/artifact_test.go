package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/prsurve/deploy-dr-workloads/pkg/config"
)

func TestFileName(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want string
	}{
		{
			name: "plain",
			cfg: config.Config{
				WorkloadType:    config.TypeDistributed,
				PVCType:         config.PVCTypeRBD,
				Workload:        config.WorkloadBusybox,
				MultiNSWorkload: 1,
			},
			want: "output_dist_rbd_busybox_combined.yaml",
		},
		{
			name: "with namespace prefix",
			cfg: config.Config{
				NSPrefix:        "qe",
				WorkloadType:    config.TypeAppSet,
				PVCType:         config.PVCTypeCephFS,
				Workload:        config.WorkloadMySQL,
				MultiNSWorkload: 1,
			},
			want: "output_qe_appset_cephfs_mysql_combined.yaml",
		},
		{
			name: "multi namespace runs are distinguished",
			cfg: config.Config{
				WorkloadType:    config.TypeDistributed,
				PVCType:         config.PVCTypeRBD,
				Workload:        config.WorkloadBusybox,
				MultiNSWorkload: 2,
			},
			want: "output_dist_rbd_busybox_multi2_combined.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FileName(&tt.cfg); got != tt.want {
				t.Errorf("FileName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteStream(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "combined.yaml")

	objs := []*unstructured.Unstructured{
		{Object: map[string]interface{}{
			"apiVersion": "v1",
			"kind":       "Namespace",
			"metadata":   map[string]interface{}{"name": "ns-1"},
		}},
		{Object: map[string]interface{}{
			"apiVersion": "ramendr.openshift.io/v1alpha1",
			"kind":       "DRPlacementControl",
			"metadata":   map[string]interface{}{"name": "drpc-1", "namespace": "openshift-dr-ops"},
		}},
	}

	if err := WriteStream(path, objs); err != nil {
		t.Fatalf("WriteStream() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	docs := strings.Split(string(data), "---\n")
	if len(docs) != 2 {
		t.Fatalf("output has %d documents, want 2", len(docs))
	}
	if !strings.Contains(docs[0], "kind: Namespace") {
		t.Errorf("first document = %q", docs[0])
	}
	if !strings.Contains(docs[1], "kind: DRPlacementControl") {
		t.Errorf("second document = %q", docs[1])
	}
}

func TestWriteStreamEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "combined.yaml")

	if err := WriteStream(path, nil); err != nil {
		t.Fatalf("WriteStream() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("empty stream wrote %d bytes", len(data))
	}
}
