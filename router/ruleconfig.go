package router

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"
)

// ruleFileSchema is the inline CUE schema every rule file is unified
// against before decoding. Keys are dotted component paths; values are
// integer severities or canonical level names.
const ruleFileSchema = `
rules: {
	[string]: int | string
}
`

// maxRuleFileSize bounds rule-file reads to prevent resource exhaustion.
const maxRuleFileSize = 10 * 1024 * 1024

// NewFromConfig creates a Router over sink from an externally supplied
// rule mapping. Keys are dotted component paths ("core.io") or single
// names; values are integers, integral floats, canonical level names, or
// decimal strings. All keys normalize to the internal path form, and the
// default entry is guaranteed to exist afterwards.
func NewFromConfig(sink Sink, rules map[string]any) (*Router, error) {
	r := New(sink)
	if err := r.applyConfig(rules); err != nil {
		return nil, err
	}
	return r, nil
}

// NewFromYAMLFile creates a Router from a YAML rule file. The file must
// hold a top-level "rules" mapping from dotted paths to severities:
//
//	rules:
//	  default: info
//	  core: warn
//	  core.io: -1000
//
// The YAML content is extracted through CUE and validated against the
// rule-file schema before any rule is applied.
func NewFromYAMLFile(sink Sink, filename string) (*Router, error) {
	data, err := readRuleFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read YAML rule file %s: %w", filename, err)
	}
	ctx := cuecontext.New()
	file, err := yaml.Extract(filename, data)
	if err != nil {
		return nil, fmt.Errorf("failed to extract YAML from rule file %s: %w", filename, err)
	}
	value := ctx.BuildFile(file)
	if value.Err() != nil {
		return nil, fmt.Errorf("failed to build CUE value from YAML rule file %s: %w", filename, value.Err())
	}
	return routerFromCUEValue(sink, ctx, value, filename)
}

// NewFromCUEFile creates a Router from a CUE rule file. CUE files carry
// the same structure as YAML rule files with CUE's additional type
// safety:
//
//	rules: {
//		default: "info"
//		core:    "warn"
//		"core.io": -1000
//	}
func NewFromCUEFile(sink Sink, filename string) (*Router, error) {
	data, err := readRuleFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read CUE rule file %s: %w", filename, err)
	}
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(filename))
	if value.Err() != nil {
		return nil, fmt.Errorf("failed to compile CUE rule file %s: %w", filename, value.Err())
	}
	return routerFromCUEValue(sink, ctx, value, filename)
}

// NewFromPath creates a Router by probing dirPath for a rule file. The
// search order prefers CUE over YAML and the specific name over the
// generic one: logrouter.cue, logrouter.yaml, logrouter.yml, rules.cue,
// rules.yaml, rules.yml. The first file found wins.
func NewFromPath(sink Sink, dirPath string) (*Router, error) {
	candidates := []string{
		"logrouter.cue",
		"logrouter.yaml",
		"logrouter.yml",
		"rules.cue",
		"rules.yaml",
		"rules.yml",
	}
	for _, name := range candidates {
		fullPath := filepath.Join(dirPath, name)
		if _, err := os.Stat(fullPath); os.IsNotExist(err) {
			continue
		}
		switch filepath.Ext(name) {
		case ".cue":
			return NewFromCUEFile(sink, fullPath)
		case ".yaml", ".yml":
			return NewFromYAMLFile(sink, fullPath)
		}
	}
	return nil, fmt.Errorf("no rule file found in %s (tried %s)", dirPath, strings.Join(candidates, ", "))
}

// routerFromCUEValue unifies a compiled rule file with the schema,
// decodes it, and applies the rules.
func routerFromCUEValue(sink Sink, ctx *cue.Context, value cue.Value, filename string) (*Router, error) {
	schema := ctx.CompileString(ruleFileSchema, cue.Filename("rulefile_schema"))
	if schema.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule-file schema: %w", schema.Err())
	}
	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("rule file %s failed schema validation: %w", filename, err)
	}
	var decoded struct {
		Rules map[string]any `json:"rules"`
	}
	if err := unified.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode rule file %s: %w", filename, err)
	}
	r := New(sink)
	if err := r.applyConfig(decoded.Rules); err != nil {
		return nil, fmt.Errorf("rule file %s: %w", filename, err)
	}
	return r, nil
}

// applyConfig normalizes and installs an external rule mapping. The
// default entry survives even when the mapping does not mention it.
func (r *Router) applyConfig(rules map[string]any) error {
	for key, raw := range rules {
		path, err := ParsePath(key)
		if err != nil {
			return fmt.Errorf("rule key %q: %w", key, err)
		}
		level, err := normalizeLevel(raw)
		if err != nil {
			return fmt.Errorf("rule %q: %w", key, err)
		}
		if err := r.SetLevel(path, level); err != nil {
			return err
		}
	}
	return nil
}

// readRuleFile reads a rule file after validating the path and bounding
// the file size.
func readRuleFile(filename string) ([]byte, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, fmt.Errorf("rule file path cannot be empty")
	}
	cleanPath := filepath.Clean(filename)
	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("invalid rule file path: contains directory traversal: %s", cleanPath)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat rule file %s: %w", cleanPath, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("rule file path %s is not a regular file", cleanPath)
	}
	if info.Size() > maxRuleFileSize {
		return nil, fmt.Errorf("rule file %s too large (%d bytes), maximum allowed: %d bytes",
			cleanPath, info.Size(), maxRuleFileSize)
	}
	file, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open rule file %s: %w", cleanPath, err)
	}
	defer file.Close()
	return io.ReadAll(io.LimitReader(file, maxRuleFileSize))
}

// reloadFromFile re-reads a rule file and applies its rules to the
// receiver in place. Used by RuleWatcher; the parsed rules replace or add
// to existing entries, they never remove them.
func (r *Router) reloadFromFile(filename string) error {
	var loaded *Router
	var err error
	switch filepath.Ext(filename) {
	case ".cue":
		loaded, err = NewFromCUEFile(nil, filename)
	case ".yaml", ".yml":
		loaded, err = NewFromYAMLFile(nil, filename)
	default:
		return fmt.Errorf("unsupported rule file extension: %s", filename)
	}
	if err != nil {
		return err
	}
	for key, level := range loaded.rules {
		path, perr := ParsePath(key)
		if perr != nil {
			return perr
		}
		if serr := r.SetLevel(path, level); serr != nil {
			return serr
		}
	}
	return nil
}
