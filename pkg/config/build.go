package config

import (
	"dario.cat/mergo"
)

// BuildConfig is the build specification baked into a compiled engine. Its
// fields are frozen once an artifact exists; on merge the whole block is
// replaced atomically, never field-merged, so a stale base can never leak
// build-time values into a newer specification.
type BuildConfig struct {
	MaxInputLen   int  `koanf:"max_input_len"  validate:"gt=0"`
	MaxSeqLen     int  `koanf:"max_seq_len"    validate:"gt=0"`
	MaxBatchSize  int  `koanf:"max_batch_size" validate:"gt=0"`
	MaxBeamWidth  int  `koanf:"max_beam_width" validate:"gt=0"`
	MaxNumTokens  int  `koanf:"max_num_tokens" validate:"gt=0"`
	OptLevel      *int `koanf:"opt_level"      validate:"omitempty,gte=0,lte=5"`
	StronglyTyped bool `koanf:"strongly_typed"`
}

// NewBuildConfig returns a BuildConfig with registry defaults.
func NewBuildConfig() *BuildConfig {
	cfg := buildBuildConfig(registryFor(variantEngine))
	return &cfg
}

// NewBuildConfigFromMap constructs and validates a BuildConfig from a field
// mapping.
func NewBuildConfigFromMap(data map[string]any) (*BuildConfig, error) {
	cfg := NewBuildConfig()
	if err := decodeStrict(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field against its declared constraint.
func (c *BuildConfig) Validate() error {
	return validateStruct(c)
}

// AsMap renders the build specification as a nested mapping.
func (c *BuildConfig) AsMap() (map[string]any, error) {
	return structToMap(c)
}

// FromMap overlays a normalized map onto the build specification.
func (c *BuildConfig) FromMap(data map[string]any) error {
	overlay, err := NewBuildConfigFromMap(data)
	if err != nil {
		return err
	}
	return mergo.Merge(c, overlay, mergo.WithOverride)
}
