package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed limits.schema.json
var limitsSchema string

const schemaURL = "limits.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, strings.NewReader(limitsSchema)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// Load reads limits from a YAML file. Fields missing from the file keep
// their Default values.
func Load(path string) (Limits, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Limits{}, fmt.Errorf("read limits: %w", err)
	}
	l, err := Parse(raw)
	if err != nil {
		return Limits{}, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// Parse decodes and validates a YAML limits document.
func Parse(raw []byte) (Limits, error) {
	l := Default()

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Limits{}, fmt.Errorf("decode: %w", err)
	}
	if doc == nil {
		return l, nil
	}
	if err := validate(doc); err != nil {
		return Limits{}, err
	}

	if err := yaml.Unmarshal(raw, &l); err != nil {
		return Limits{}, fmt.Errorf("decode: %w", err)
	}
	return l, nil
}

// validate checks a decoded YAML document against the limits schema.
// The document goes through JSON so numbers reach the validator as json.Number.
func validate(doc any) error {
	s, err := compiledSchema()
	if err != nil {
		return err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	return nil
}

// Provider supplies limits to the lifecycle. A nil result means "none".
type Provider interface {
	Limits() *Limits
}

// Resolve returns the limits of the first source implementing Provider that
// yields non-nil limits. Sources of other types are skipped. With no usable
// provider the built-in defaults are returned.
func Resolve(sources ...any) Limits {
	for _, src := range sources {
		p, ok := src.(Provider)
		if !ok || isNil(src) {
			continue
		}
		if l := p.Limits(); l != nil {
			return *l
		}
	}
	slog.Debug("no limits provider found, using defaults")
	return Default()
}

// isNil reports whether src is nil or a nil pointer hiding in an interface.
func isNil(src any) bool {
	if src == nil {
		return true
	}
	v := reflect.ValueOf(src)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// FileProvider loads limits from a YAML file on demand.
type FileProvider struct {
	Path string
}

// Limits loads the file. Failures are logged and yield nil so that the
// caller falls back to defaults.
func (p FileProvider) Limits() *Limits {
	if p.Path == "" {
		return nil
	}
	l, err := Load(p.Path)
	if err != nil {
		slog.Warn("limits file unusable, falling back to defaults", "path", p.Path, "error", err)
		return nil
	}
	slog.Info("limits loaded", "path", p.Path)
	return &l
}

// Static is a Provider over fixed limits.
type Static Limits

// Limits returns a copy of the fixed limits.
func (s Static) Limits() *Limits {
	l := Limits(s)
	return &l
}
