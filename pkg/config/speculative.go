package config

import (
	"dario.cat/mergo"
)

// LookaheadConfig configures lookahead speculative decoding.
type LookaheadConfig struct {
	DecodingType           string `koanf:"decoding_type"             validate:"oneof=Lookahead"`
	MaxWindowSize          int    `koanf:"max_window_size"           validate:"gt=0"`
	MaxNgramSize           int    `koanf:"max_ngram_size"            validate:"gt=0"`
	MaxVerificationSetSize int    `koanf:"max_verification_set_size" validate:"gt=0"`
}

// NewLookaheadConfig returns a LookaheadConfig with registry defaults.
func NewLookaheadConfig() *LookaheadConfig {
	cfg := buildLookaheadConfig(registryFor(variantShared))
	return &cfg
}

// NewLookaheadConfigFromMap constructs and validates a LookaheadConfig from a
// field mapping.
func NewLookaheadConfigFromMap(data map[string]any) (*LookaheadConfig, error) {
	cfg := NewLookaheadConfig()
	if err := decodeStrict(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the decoding type literal and window constraints.
func (c *LookaheadConfig) Validate() error {
	return validateStruct(c)
}

// AsMap renders the config as a nested mapping.
func (c *LookaheadConfig) AsMap() (map[string]any, error) {
	return structToMap(c)
}

// FromMap overlays a normalized map onto the config.
func (c *LookaheadConfig) FromMap(data map[string]any) error {
	overlay, err := NewLookaheadConfigFromMap(data)
	if err != nil {
		return err
	}
	return mergo.Merge(c, overlay, mergo.WithOverride)
}
