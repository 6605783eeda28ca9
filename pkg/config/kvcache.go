package config

import (
	"dario.cat/mergo"
)

// KVCacheConfig controls the paged KV cache owned by the execution engine.
// Pointer fields distinguish "unset, engine decides" from an explicit zero.
type KVCacheConfig struct {
	EnableBlockReuse            bool     `koanf:"enable_block_reuse"`
	MaxTokens                   *int     `koanf:"max_tokens"                     validate:"omitempty,gt=0"`
	MaxAttentionWindow          []int    `koanf:"max_attention_window"           validate:"omitempty,dive,gt=0"`
	SinkTokenLength             *int     `koanf:"sink_token_length"              validate:"omitempty,gte=0"`
	FreeGPUMemoryFraction       *float64 `koanf:"free_gpu_memory_fraction"       validate:"omitempty,gte=0,lte=1"`
	HostCacheSize               *int     `koanf:"host_cache_size"                validate:"omitempty,gte=0"`
	OnboardBlocks               bool     `koanf:"onboard_blocks"`
	CrossKVCacheFraction        *float64 `koanf:"cross_kv_cache_fraction"        validate:"omitempty,gte=0,lte=1"`
	SecondaryOffloadMinPriority *int     `koanf:"secondary_offload_min_priority"`
	EventBufferMaxSize          int      `koanf:"event_buffer_max_size"          validate:"gte=0"`
	EnablePartialReuse          bool     `koanf:"enable_partial_reuse"`
	CopyOnPartialReuse          bool     `koanf:"copy_on_partial_reuse"`
}

// NewKVCacheConfig returns a KVCacheConfig with registry defaults.
func NewKVCacheConfig() *KVCacheConfig {
	cfg := buildKVCacheConfig(registryFor(variantShared))
	return &cfg
}

// NewKVCacheConfigFromMap constructs and validates a KVCacheConfig from a
// field mapping. Unknown keys and constraint violations fail construction.
func NewKVCacheConfigFromMap(data map[string]any) (*KVCacheConfig, error) {
	cfg := NewKVCacheConfig()
	if err := decodeStrict(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field against its declared constraint.
func (c *KVCacheConfig) Validate() error {
	return validateStruct(c)
}

// AsMap renders the config as a nested mapping.
func (c *KVCacheConfig) AsMap() (map[string]any, error) {
	return structToMap(c)
}

// FromMap overlays a normalized map onto the config.
func (c *KVCacheConfig) FromMap(data map[string]any) error {
	overlay, err := NewKVCacheConfigFromMap(data)
	if err != nil {
		return err
	}
	return mergo.Merge(c, overlay, mergo.WithOverride)
}
