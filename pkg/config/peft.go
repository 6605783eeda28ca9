package config

import (
	"dario.cat/mergo"
)

// PeftCacheConfig sizes the LoRA adapter cache on host and device.
type PeftCacheConfig struct {
	NumHostModuleLayer     int      `koanf:"num_host_module_layer"      validate:"gte=0"`
	NumDeviceModuleLayer   int      `koanf:"num_device_module_layer"    validate:"gte=0"`
	OptimalAdapterSize     int      `koanf:"optimal_adapter_size"       validate:"gt=0"`
	MaxAdapterSize         int      `koanf:"max_adapter_size"           validate:"gt=0"`
	NumPutWorkers          int      `koanf:"num_put_workers"            validate:"gt=0"`
	NumEnsureWorkers       int      `koanf:"num_ensure_workers"         validate:"gt=0"`
	NumCopyStreams         int      `koanf:"num_copy_streams"           validate:"gt=0"`
	MaxPagesPerBlockHost   int      `koanf:"max_pages_per_block_host"   validate:"gt=0"`
	MaxPagesPerBlockDevice int      `koanf:"max_pages_per_block_device" validate:"gt=0"`
	DeviceCachePercent     *float64 `koanf:"device_cache_percent"       validate:"omitempty,gte=0,lte=1"`
	HostCacheSize          *int     `koanf:"host_cache_size"            validate:"omitempty,gte=0"`
	LoraPrefetchDir        string   `koanf:"lora_prefetch_dir"`
}

// NewPeftCacheConfig returns a PeftCacheConfig with registry defaults.
func NewPeftCacheConfig() *PeftCacheConfig {
	cfg := buildPeftCacheConfig(registryFor(variantShared))
	return &cfg
}

// NewPeftCacheConfigFromMap constructs and validates a PeftCacheConfig from a
// field mapping.
func NewPeftCacheConfigFromMap(data map[string]any) (*PeftCacheConfig, error) {
	cfg := NewPeftCacheConfig()
	if err := decodeStrict(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field against its declared constraint.
func (c *PeftCacheConfig) Validate() error {
	return validateStruct(c)
}

// AsMap renders the config as a nested mapping.
func (c *PeftCacheConfig) AsMap() (map[string]any, error) {
	return structToMap(c)
}

// FromMap overlays a normalized map onto the config.
func (c *PeftCacheConfig) FromMap(data map[string]any) error {
	overlay, err := NewPeftCacheConfigFromMap(data)
	if err != nil {
		return err
	}
	return mergo.Merge(c, overlay, mergo.WithOverride)
}
