package config

import (
	"dario.cat/mergo"
)

// CapacitySchedulerPolicy selects how the scheduler admits requests against
// cache capacity.
type CapacitySchedulerPolicy string

const (
	CapacityGuaranteedNoEvict CapacitySchedulerPolicy = "GUARANTEED_NO_EVICT"
	CapacityMaxUtilization    CapacitySchedulerPolicy = "MAX_UTILIZATION"
	CapacityStaticBatch       CapacitySchedulerPolicy = "STATIC_BATCH"
)

// ContextChunkingPolicy selects how context-phase work is chunked across
// scheduling steps.
type ContextChunkingPolicy string

const (
	ChunkingFirstComeFirstServed ContextChunkingPolicy = "FIRST_COME_FIRST_SERVED"
	ChunkingEqualProgress        ContextChunkingPolicy = "EQUAL_PROGRESS"
)

// DynamicBatchConfig tunes batch size and token ceilings from runtime
// statistics.
type DynamicBatchConfig struct {
	EnableBatchSizeTuning           bool `koanf:"enable_batch_size_tuning"`
	EnableMaxNumTokensTuning        bool `koanf:"enable_max_num_tokens_tuning"`
	DynamicBatchMovingAverageWindow int  `koanf:"dynamic_batch_moving_average_window" validate:"gt=0"`
}

// NewDynamicBatchConfig returns a DynamicBatchConfig with registry defaults.
func NewDynamicBatchConfig() *DynamicBatchConfig {
	cfg := buildDynamicBatchConfig(registryFor(variantShared))
	return &cfg
}

// SchedulerConfig controls request scheduling inside the execution engine.
type SchedulerConfig struct {
	CapacitySchedulerPolicy CapacitySchedulerPolicy `koanf:"capacity_scheduler_policy" validate:"oneof=GUARANTEED_NO_EVICT MAX_UTILIZATION STATIC_BATCH"`
	ContextChunkingPolicy   ContextChunkingPolicy   `koanf:"context_chunking_policy"   validate:"oneof=FIRST_COME_FIRST_SERVED EQUAL_PROGRESS"`
	DynamicBatchConfig      *DynamicBatchConfig     `koanf:"dynamic_batch_config"      validate:"omitempty"`
}

// NewSchedulerConfig returns a SchedulerConfig with registry defaults.
func NewSchedulerConfig() *SchedulerConfig {
	cfg := buildSchedulerConfig(registryFor(variantShared))
	return &cfg
}

// NewSchedulerConfigFromMap constructs and validates a SchedulerConfig from a
// field mapping.
func NewSchedulerConfigFromMap(data map[string]any) (*SchedulerConfig, error) {
	cfg := NewSchedulerConfig()
	// Seed nested defaults so a partial dynamic_batch_config overlay keeps
	// the registry defaults for the fields it omits.
	if _, ok := mapValue(data, "dynamic_batch_config"); ok && cfg.DynamicBatchConfig == nil {
		cfg.DynamicBatchConfig = NewDynamicBatchConfig()
	}
	if err := decodeStrict(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks policy literals and nested dynamic-batch constraints.
func (c *SchedulerConfig) Validate() error {
	return validateStruct(c)
}

// AsMap renders the config as a nested mapping with policies as literals.
func (c *SchedulerConfig) AsMap() (map[string]any, error) {
	return structToMap(c)
}

// FromMap overlays a normalized map onto the config.
func (c *SchedulerConfig) FromMap(data map[string]any) error {
	overlay, err := NewSchedulerConfigFromMap(data)
	if err != nil {
		return err
	}
	return mergo.Merge(c, overlay, mergo.WithOverride)
}
