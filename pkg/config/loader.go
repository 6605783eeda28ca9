package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/modelserve/modelserve/pkg/config/definition"
	"github.com/modelserve/modelserve/pkg/logger"
)

// SourceType identifies where a configuration value came from.
type SourceType string

const (
	SourceDefault SourceType = "default"
	SourceYAML    SourceType = "yaml"
	SourceEnv     SourceType = "env"
)

// DefaultEnvPrefix namespaces the environment variables the loader reads.
const DefaultEnvPrefix = "MODELSERVE_"

// Loader assembles an argument mapping for one backend variant from layered
// sources: registry defaults, then an optional YAML overlay file, then
// environment variables. It records the winning source per key. The result
// feeds the variant's FromMap factory, which owns validation and
// finalization.
type Loader struct {
	variant     definition.Variant
	koanf       *koanf.Koanf
	overlayPath string
	envPrefix   string

	mu      sync.RWMutex
	sources map[string]SourceType
}

// LoaderOption customizes a Loader.
type LoaderOption func(*Loader)

// WithOverlayFile layers a YAML file between defaults and the environment.
func WithOverlayFile(path string) LoaderOption {
	return func(l *Loader) {
		l.overlayPath = path
	}
}

// WithEnvPrefix overrides the environment variable prefix.
func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// NewLoader creates a loader for one backend variant.
func NewLoader(variant definition.Variant, opts ...LoaderOption) *Loader {
	l := &Loader{
		variant:   variant,
		koanf:     koanf.New("."),
		envPrefix: DefaultEnvPrefix,
		sources:   make(map[string]SourceType),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load assembles the layered mapping and returns only the keys the overlay
// file or the environment actually set. Later layers win per key; the build
// specification block in an overlay replaces the default block wholesale.
// The variant's FromMap factory supplies registry defaults for everything
// else, so keys absent here keep their "not explicitly set" meaning.
func (l *Loader) Load(ctx context.Context) (map[string]any, error) {
	log := logger.FromContext(ctx)
	l.reset()
	if err := l.loadDefaults(); err != nil {
		return nil, err
	}
	if err := l.loadOverlay(log); err != nil {
		return nil, err
	}
	if err := l.loadEnvironment(log); err != nil {
		return nil, err
	}
	out := map[string]any{}
	for key, value := range l.snapshot() {
		if l.Source(key) == SourceDefault {
			continue
		}
		setNested(out, key, value)
	}
	return out, nil
}

// Source reports where the value at a dotted key came from.
func (l *Loader) Source(key string) SourceType {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if src, ok := l.sources[key]; ok {
		return src
	}
	return SourceDefault
}

// Sources returns a copy of the per-key source map.
func (l *Loader) Sources() map[string]SourceType {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]SourceType, len(l.sources))
	for k, v := range l.sources {
		out[k] = v
	}
	return out
}

func (l *Loader) reset() {
	l.koanf = koanf.New(".")
	l.mu.Lock()
	l.sources = make(map[string]SourceType)
	l.mu.Unlock()
}

func (l *Loader) defaultArgs() any {
	switch l.variant {
	case variantEngine:
		return defaultEngineArgs()
	case variantAutoDeploy:
		return defaultAutoDeployArgs()
	default:
		return defaultTorchArgs()
	}
}

func (l *Loader) loadDefaults() error {
	if err := l.koanf.Load(structs.Provider(l.defaultArgs(), "koanf"), nil); err != nil {
		return fmt.Errorf("failed to load defaults: %w", err)
	}
	// Unset pointer and map fields arrive from the defaults struct as typed
	// nils. They carry no value and trip koanf's deep-copying reads, so drop
	// them; an overlay or env layer that sets one replaces it wholesale.
	for key, value := range l.snapshot() {
		if isNilValue(value) {
			l.koanf.Delete(key)
			continue
		}
		l.trackSource(key, SourceDefault)
	}
	return nil
}

// loadOverlay applies the YAML overlay file, honoring the same overlay rules
// as map merges: recognized legacy keys are rejected with guidance, and the
// build specification block replaces the current one atomically.
func (l *Loader) loadOverlay(log logger.Logger) error {
	if l.overlayPath == "" {
		return nil
	}
	data, err := os.ReadFile(l.overlayPath)
	if err != nil {
		return fmt.Errorf("failed to read overlay file: %w", err)
	}
	var overlay map[string]any
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("failed to parse overlay file %s: %w", l.overlayPath, err)
	}
	if len(overlay) == 0 {
		return nil
	}
	for key, guidance := range deprecatedKeys {
		if _, ok := overlay[key]; ok {
			return &DeprecatedKeyError{Key: key, Guidance: guidance}
		}
	}
	before := l.snapshot()
	if _, ok := overlay[BuildConfigKey]; ok {
		l.koanf.Delete(BuildConfigKey)
	}
	for key, value := range flattenMap("", overlay) {
		if err := l.koanf.Set(key, value); err != nil {
			return fmt.Errorf("failed to set key %s from overlay: %w", key, err)
		}
	}
	l.trackChanged(before, SourceYAML)
	log.Debug("applied configuration overlay", "path", l.overlayPath, "keys", len(overlay))
	return nil
}

func (l *Loader) loadEnvironment(log logger.Logger) error {
	envToPath := make(map[string]string)
	for _, mapping := range GenerateEnvMappings(l.variant) {
		envToPath[mapping.EnvVar] = mapping.ConfigPath
	}
	before := l.snapshot()
	err := l.koanf.Load(env.Provider(".", env.Opt{
		Prefix: l.envPrefix,
		TransformFunc: func(key string, value string) (string, any) {
			key = strings.TrimPrefix(key, l.envPrefix)
			if configPath, ok := envToPath[key]; ok {
				return configPath, value
			}
			// Unmapped variables under the prefix are ignored rather than
			// guessed at; the schema is closed.
			return "", nil
		},
	}), nil)
	if err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	changed := l.trackChanged(before, SourceEnv)
	if changed > 0 {
		log.Debug("applied environment overrides", "count", changed)
	}
	return nil
}

// snapshot flattens the current koanf state into dotted keys without going
// through koanf's per-key deep copy, which cannot handle typed-nil values.
func (l *Loader) snapshot() map[string]any {
	return flattenMap("", l.koanf.Raw())
}

// trackChanged marks every key that appeared or changed since the snapshot as
// coming from the given source and returns how many did.
func (l *Loader) trackChanged(before map[string]any, source SourceType) int {
	changed := 0
	for key, value := range l.snapshot() {
		valBefore, existed := before[key]
		if existed && fmt.Sprintf("%v", valBefore) == fmt.Sprintf("%v", value) {
			continue
		}
		l.trackSource(key, source)
		changed++
	}
	return changed
}

func (l *Loader) trackSource(key string, source SourceType) {
	l.mu.Lock()
	l.sources[key] = source
	l.mu.Unlock()
}

// setNested writes a dotted key into a nested mapping, creating intermediate
// maps as needed.
func setNested(m map[string]any, key string, value any) {
	parts := strings.Split(key, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := m[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[part] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}

// flattenMap flattens a nested mapping into dotted keys.
func flattenMap(prefix string, m map[string]any) map[string]any {
	result := make(map[string]any)
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := asStringMap(v); ok && len(nested) > 0 {
			for nk, nv := range flattenMap(key, nested) {
				result[nk] = nv
			}
			continue
		}
		result[key] = v
	}
	return result
}

// LoadTorchArgs runs the layered load and builds a finalized runtime-oriented
// aggregate.
func LoadTorchArgs(ctx context.Context, opts ...LoaderOption) (*TorchArgs, error) {
	raw, err := NewLoader(variantTorch, opts...).Load(ctx)
	if err != nil {
		return nil, err
	}
	return NewTorchArgsFromMap(raw)
}

// LoadEngineArgs runs the layered load and builds a finalized build-oriented
// aggregate.
func LoadEngineArgs(ctx context.Context, opts ...LoaderOption) (*EngineArgs, error) {
	raw, err := NewLoader(variantEngine, opts...).Load(ctx)
	if err != nil {
		return nil, err
	}
	return NewEngineArgsFromMap(raw)
}

// LoadAutoDeployArgs runs the layered load and builds a finalized
// restricted-backend aggregate.
func LoadAutoDeployArgs(ctx context.Context, opts ...LoaderOption) (*AutoDeployArgs, error) {
	raw, err := NewLoader(variantAutoDeploy, opts...).Load(ctx)
	if err != nil {
		return nil, err
	}
	return NewAutoDeployArgsFromMap(raw)
}
