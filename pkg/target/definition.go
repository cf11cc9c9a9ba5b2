// Package target loads target definitions and resolves their locations into
// the import units they want present in the workspace.
package target

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/grovetools/wsync/config"
	"github.com/grovetools/wsync/errors"
	"github.com/grovetools/wsync/pkg/workspace"
	"github.com/grovetools/wsync/schema"
	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Kind selects the resolver for a location.
type Kind string

const (
	KindDirectory Kind = "directory"
	KindGit       Kind = "git"
	KindResources Kind = "resources"
)

// Definition is a target definition: the aggregate of all target locations
// currently in effect.
type Definition struct {
	Name      string     `yaml:"name" toml:"name" json:"name" jsonschema:"required"`
	Locations []Location `yaml:"locations" toml:"locations" json:"locations"`

	// Path is the file the definition was loaded from.
	Path string `yaml:"-" toml:"-" json:"path,omitempty"`
}

// Location is one configured source of import units.
type Location struct {
	Name string `yaml:"name" toml:"name" json:"name" jsonschema:"required,pattern=^[A-Za-z0-9._-]+$"`
	Kind Kind   `yaml:"kind" toml:"kind" json:"kind" jsonschema:"required,enum=directory,enum=git,enum=resources"`

	// Path is the directory scanned by directory locations.
	Path string `yaml:"path,omitempty" toml:"path,omitempty" json:"path,omitempty"`

	// URL, Ref and Depth select what git locations check out.
	URL   string `yaml:"url,omitempty" toml:"url,omitempty" json:"url,omitempty"`
	Ref   string `yaml:"ref,omitempty" toml:"ref,omitempty" json:"ref,omitempty"`
	Depth int    `yaml:"depth,omitempty" toml:"depth,omitempty" json:"depth,omitempty" jsonschema:"minimum=0"`

	// Include and Exclude filter discovered projects by relative path.
	Include []string `yaml:"include,omitempty" toml:"include,omitempty" json:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty" toml:"exclude,omitempty" json:"exclude,omitempty"`

	Resources []ResourceSpec `yaml:"resources,omitempty" toml:"resources,omitempty" json:"resources,omitempty"`

	// Options carries kind-specific settings, see ScanOptions and GitOptions.
	Options map[string]interface{} `yaml:"options,omitempty" toml:"options,omitempty" json:"options,omitempty"`
}

// ResourceSpec describes one file a resources location creates.
type ResourceSpec struct {
	// Target is the workspace-relative path of the file.
	Target string `yaml:"target" toml:"target" json:"target" jsonschema:"required"`
	// Content is written verbatim. When empty, From supplies the content.
	Content string `yaml:"content,omitempty" toml:"content,omitempty" json:"content,omitempty"`
	// From is a file path or http(s) URL to read content from.
	From     string `yaml:"from,omitempty" toml:"from,omitempty" json:"from,omitempty"`
	Encoding string `yaml:"encoding,omitempty" toml:"encoding,omitempty" json:"encoding,omitempty"`
	Force    bool   `yaml:"force,omitempty" toml:"force,omitempty" json:"force,omitempty"`
}

// Descriptor is the current resolution state of one location.
type Descriptor struct {
	Location Location         `json:"location"`
	Units    []workspace.Unit `json:"units"`
	// Revision identifies what was resolved, e.g. a git commit.
	Revision string `json:"revision,omitempty"`
	// UpdateProblem, when set, excludes the location from synchronization.
	UpdateProblem error     `json:"-"`
	ResolvedAt    time.Time `json:"resolved_at"`
}

// Healthy reports whether the location takes part in synchronization.
func (d *Descriptor) Healthy() bool {
	return d != nil && d.UpdateProblem == nil
}

// DecodeOptions decodes the location's options into target.
func (l Location) DecodeOptions(target interface{}) error {
	if len(l.Options) == 0 {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}
	if err := decoder.Decode(l.Options); err != nil {
		return fmt.Errorf("invalid options for location '%s': %w", l.Name, err)
	}
	return nil
}

// Location returns the named location.
func (d *Definition) Location(name string) (Location, bool) {
	for _, loc := range d.Locations {
		if loc.Name == name {
			return loc, true
		}
	}
	return Location{}, false
}

var (
	definitionValidator     *schema.Validator
	definitionValidatorErr  error
	definitionValidatorOnce sync.Once
)

// DefinitionSchema returns the JSON schema of target definition files.
func DefinitionSchema() ([]byte, error) {
	return schema.Generate(&Definition{}, "wsync Target Definition",
		"Target locations whose projects and resources are synchronized into a workspace.")
}

func validator() (*schema.Validator, error) {
	definitionValidatorOnce.Do(func() {
		data, err := DefinitionSchema()
		if err != nil {
			definitionValidatorErr = err
			return
		}
		definitionValidator, definitionValidatorErr = schema.NewValidator("target.schema.json", data)
	})
	return definitionValidator, definitionValidatorErr
}

// LoadDefinition reads a target definition file. Relative location paths
// are resolved against the file's directory.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.TargetNotFound(path)
		}
		return nil, errors.TargetInvalid(path, err)
	}

	def, err := ParseDefinition(data, config.FormatOf(path))
	if err != nil {
		return nil, errors.TargetInvalid(path, err)
	}
	def.Path = path
	def.resolvePaths(filepath.Dir(path))
	return def, nil
}

// ParseDefinition decodes and validates a target definition document.
func ParseDefinition(data []byte, format config.Format) (*Definition, error) {
	expanded := []byte(config.ExpandEnv(string(data)))

	var raw map[string]interface{}
	var def Definition
	switch format {
	case config.FormatTOML:
		if err := toml.Unmarshal(expanded, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
		if err := toml.Unmarshal(expanded, &def); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	default:
		if err := yaml.Unmarshal(expanded, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		if err := yaml.Unmarshal(expanded, &def); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}

	v, err := validator()
	if err != nil {
		return nil, err
	}
	if err := v.Validate(raw); err != nil {
		return nil, err
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks constraints the schema cannot express.
func (d *Definition) Validate() error {
	seen := make(map[string]bool, len(d.Locations))
	for _, loc := range d.Locations {
		if strings.Trim(loc.Name, ".") == "" {
			return fmt.Errorf("location name '%s' must contain more than dots", loc.Name)
		}
		if seen[loc.Name] {
			return fmt.Errorf("duplicate location name '%s'", loc.Name)
		}
		seen[loc.Name] = true

		switch loc.Kind {
		case KindDirectory:
			if loc.Path == "" {
				return fmt.Errorf("directory location '%s' requires a path", loc.Name)
			}
		case KindGit:
			if loc.URL == "" {
				return fmt.Errorf("git location '%s' requires a url", loc.Name)
			}
		case KindResources:
			for _, res := range loc.Resources {
				if res.Content != "" && res.From != "" {
					return fmt.Errorf("resource '%s' in location '%s' sets both content and from", res.Target, loc.Name)
				}
			}
		}
	}
	return nil
}

func (d *Definition) resolvePaths(baseDir string) {
	for i := range d.Locations {
		loc := &d.Locations[i]
		loc.Path = config.ResolvePath(baseDir, loc.Path)
		for j := range loc.Resources {
			res := &loc.Resources[j]
			if res.From != "" && !isURL(res.From) {
				res.From = config.ResolvePath(baseDir, res.From)
			}
		}
	}
}
