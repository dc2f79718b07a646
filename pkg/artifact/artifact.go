package artifact

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/yaml"

	"github.com/prsurve/deploy-dr-workloads/pkg/config"
)

// FileName returns the combined-output name for a run. It is derived from
// the run's shape, so repeated runs with the same settings overwrite their
// own output instead of piling up.
func FileName(cfg *config.Config) string {
	prefix := ""
	if cfg.NSPrefix != "" {
		prefix = cfg.NSPrefix + "_"
	}
	multi := ""
	if cfg.MultiNSWorkload > 1 {
		multi = fmt.Sprintf("_multi%d", cfg.MultiNSWorkload)
	}
	return fmt.Sprintf("output_%s%s_%s_%s%s_combined.yaml", prefix, cfg.WorkloadType, cfg.PVCType, cfg.Workload, multi)
}

// WriteStream writes the documents as one multi-document YAML file, creating
// the target directory if needed.
func WriteStream(path string, objs []*unstructured.Unstructured) error {
	var buf bytes.Buffer
	for i, obj := range objs {
		data, err := yaml.Marshal(obj.Object)
		if err != nil {
			return fmt.Errorf("marshal document %d: %w", i+1, err)
		}
		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(data)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
