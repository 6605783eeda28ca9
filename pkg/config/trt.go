package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/goccy/go-yaml"

	"github.com/modelserve/modelserve/pkg/config/definition"
)

// EngineArgs is the build-oriented aggregate. It embeds the build
// specification of a compiled engine; runtime ceilings are read from that
// specification and take precedence over stale scalar defaults.
type EngineArgs struct {
	BaseArgs `koanf:",squash,flatten"`

	BuildConfig *BuildConfig `koanf:"build_config" validate:"required"`
}

func defaultEngineArgs() *EngineArgs {
	registry := registryFor(variantEngine)
	return &EngineArgs{
		BaseArgs:    buildBaseArgs(registry),
		BuildConfig: NewBuildConfig(),
	}
}

// ceilingFields are the runtime ceilings promoted from the build
// specification when the caller does not set them explicitly.
var ceilingFields = []string{"max_input_len", "max_seq_len", "max_batch_size", "max_num_tokens", "max_beam_width"}

// NewEngineArgs builds, validates, and finalizes a build-oriented aggregate
// from a model reference and optional keyword overrides.
func NewEngineArgs(model string, overrides map[string]any) (*EngineArgs, error) {
	raw, err := Merge(map[string]any{"model": model}, overrides, BuildConfigKey)
	if err != nil {
		return nil, err
	}
	return NewEngineArgsFromMap(raw)
}

// NewEngineArgsFromBuildConfig constructs an aggregate around an existing
// build specification; its ceilings win over defaults.
func NewEngineArgsFromBuildConfig(model string, build *BuildConfig, overrides map[string]any) (*EngineArgs, error) {
	if build == nil {
		build = NewBuildConfig()
	}
	buildMap, err := build.AsMap()
	if err != nil {
		return nil, err
	}
	raw, err := Merge(map[string]any{"model": model, BuildConfigKey: buildMap}, overrides, BuildConfigKey)
	if err != nil {
		return nil, err
	}
	return NewEngineArgsFromMap(raw)
}

// NewEngineArgsFromMap runs the full pipeline on a merged mapping. The build
// specification block is replaced atomically, never field-merged, and its
// ceilings are promoted into any scalar the mapping leaves unset.
func NewEngineArgsFromMap(raw map[string]any) (*EngineArgs, error) {
	defaults, err := structToMap(defaultEngineArgs())
	if err != nil {
		return nil, err
	}
	merged, err := UpdateArgsWithOverlay(defaults, raw)
	if err != nil {
		return nil, err
	}
	a := defaultEngineArgs()
	a.seedOptionalConfigs(merged)
	if err := decodeStrict(merged, a); err != nil {
		return nil, err
	}
	if a.Backend == "" {
		a.Backend = BackendTensorRT
	}
	a.promoteBuildCeilings(raw)
	if err := runPipeline(&a.state, a.validate, nil); err != nil {
		return nil, err
	}
	return a, nil
}

// promoteBuildCeilings copies runtime ceilings out of the build specification
// for every ceiling the caller did not set explicitly.
func (a *EngineArgs) promoteBuildCeilings(raw map[string]any) {
	if a.BuildConfig == nil {
		return
	}
	for _, field := range ceilingFields {
		if _, explicit := raw[field]; explicit {
			continue
		}
		switch field {
		case "max_input_len":
			a.MaxInputLen = a.BuildConfig.MaxInputLen
		case "max_seq_len":
			a.MaxSeqLen = a.BuildConfig.MaxSeqLen
		case "max_batch_size":
			a.MaxBatchSize = a.BuildConfig.MaxBatchSize
		case "max_num_tokens":
			a.MaxNumTokens = a.BuildConfig.MaxNumTokens
		case "max_beam_width":
			a.MaxBeamWidth = a.BuildConfig.MaxBeamWidth
		}
	}
}

func (a *EngineArgs) validate() error {
	return validateStruct(a)
}

// BackendConfig returns the aggregate itself for engine bootstrap.
func (a *EngineArgs) BackendConfig() *EngineArgs {
	return a
}

// AsMap exports the full aggregate as a nested mapping.
func (a *EngineArgs) AsMap() (map[string]any, error) {
	return structToMap(a)
}

// Set assigns one declared field by dotted path.
func (a *EngineArgs) Set(path string, value any) error {
	return setField(a, registryFor(variantEngine), a.state, path, value)
}

// Equal reports observable equality across all fields.
func (a *EngineArgs) Equal(other *EngineArgs) bool {
	return reflect.DeepEqual(a, other)
}

// Engine artifact layout: a single config.yaml holding the serialized
// aggregate, build specification included.
const (
	engineConfigFileName = "config.yaml"
	engineConfigVersion  = 1
)

type engineConfigFile struct {
	Version int            `yaml:"version"`
	Args    map[string]any `yaml:"args"`
}

// SaveEngineDir persists the finalized aggregate into an engine directory so
// a later load reconstructs it with its build-time fields intact.
func (a *EngineArgs) SaveEngineDir(dir string) error {
	if !a.Finalized() {
		return fmt.Errorf("cannot persist a configuration in state %s", a.state)
	}
	args, err := a.AsMap()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(engineConfigFile{Version: engineConfigVersion, Args: pruneNilValues(args)})
	if err != nil {
		return fmt.Errorf("failed to encode engine config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, engineConfigFileName), data, 0o644); err != nil {
		return fmt.Errorf("failed to write engine config: %w", err)
	}
	return nil
}

// pruneNilValues drops unset keys from the serialized mapping. A YAML null
// would otherwise be rebuilt by the weak-typed decoder as an empty value
// instead of an absent one; absent keys keep their defaults on load.
func pruneNilValues(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for key, value := range m {
		if isNilValue(value) {
			continue
		}
		if nested, ok := asStringMap(value); ok {
			out[key] = pruneNilValues(nested)
			continue
		}
		out[key] = value
	}
	return out
}

// NewEngineArgsFromEngineDir loads the configuration embedded in a persisted
// engine artifact and applies caller-supplied runtime-only overrides on top.
// Build-time fields cannot be overridden here; rebuilding is the only way to
// change them.
func NewEngineArgsFromEngineDir(dir string, overrides map[string]any) (*EngineArgs, error) {
	data, err := os.ReadFile(filepath.Join(dir, engineConfigFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read engine config: %w", err)
	}
	var file engineConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse engine config: %w", err)
	}
	if file.Version != engineConfigVersion {
		return nil, fmt.Errorf("unsupported engine config version %d", file.Version)
	}
	registry := registryFor(variantEngine)
	for key := range overrides {
		if class, ok := registry.ClassOf(key); ok && class == definition.ClassBuild {
			return nil, &FieldConstraintError{
				Field:      key,
				Constraint: "runtime-only override",
				Value:      overrides[key],
			}
		}
	}
	merged, err := UpdateArgsWithOverlay(file.Args, overrides)
	if err != nil {
		return nil, err
	}
	return NewEngineArgsFromMap(merged)
}
