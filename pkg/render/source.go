package render

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrTemplateMissing reports that a named manifest template could not be
// found. Rendering aborts on it: continuing would silently drop protection
// artifacts from the run.
var ErrTemplateMissing = errors.New("manifest template missing")

// Template names understood by the renderer.
const (
	TemplatePlacement = "placement"
	TemplateDRPC      = "drpc"
	TemplateRecipe    = "recipe"
	TemplateVGRClass  = "vrgc"
	TemplateVMSecret  = "vm-secret"
)

//go:embed templates/*.yaml
var builtin embed.FS

// Source supplies raw manifest templates by name.
type Source interface {
	Template(name string) ([]byte, error)
}

// BuiltinSource serves the templates compiled into the binary.
func BuiltinSource() Source {
	return embeddedSource{}
}

type embeddedSource struct{}

func (embeddedSource) Template(name string) ([]byte, error) {
	data, err := fs.ReadFile(builtin, "templates/"+name+".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateMissing, name)
	}
	return data, nil
}

// DirSource serves templates from <dir>/<name>.yaml so the built-in
// manifests can be overridden without rebuilding.
func DirSource(dir string) Source {
	return dirSource(dir)
}

type dirSource string

func (d dirSource) Template(name string) ([]byte, error) {
	path := filepath.Join(string(d), name+".yaml")
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s (looked for %s)", ErrTemplateMissing, name, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", path, err)
	}
	return data, nil
}
