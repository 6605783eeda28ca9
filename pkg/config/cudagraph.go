package config

import (
	"slices"
)

// CudaGraphConfig selects the batch-size buckets for which CUDA graphs are
// captured. A zero MaxBatchSize means unset; the derived-field resolver
// reconciles BatchSizes and MaxBatchSize before finalization.
type CudaGraphConfig struct {
	BatchSizes    []int `koanf:"batch_sizes"    validate:"omitempty,dive,gt=0"`
	MaxBatchSize  int   `koanf:"max_batch_size" validate:"gte=0"`
	EnablePadding bool  `koanf:"enable_padding"`
}

// NewCudaGraphConfig returns a CudaGraphConfig with registry defaults.
func NewCudaGraphConfig() *CudaGraphConfig {
	return &CudaGraphConfig{}
}

// NewCudaGraphConfigFromMap constructs and validates a CudaGraphConfig from a
// field mapping.
func NewCudaGraphConfigFromMap(data map[string]any) (*CudaGraphConfig, error) {
	cfg := NewCudaGraphConfig()
	if err := decodeStrict(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field against its declared constraint.
func (c *CudaGraphConfig) Validate() error {
	return validateStruct(c)
}

// AsMap renders the config as a nested mapping.
func (c *CudaGraphConfig) AsMap() (map[string]any, error) {
	return structToMap(c)
}

// GenerateCudaGraphBatchSizes produces the default ascending bucket list for
// a maximum batch size: dense powers of two at small sizes, multiples of
// eight up to the maximum. With padding enabled the maximum itself is always
// a bucket, so any runtime batch size can round up to a captured graph.
func GenerateCudaGraphBatchSizes(maxBatchSize int, enablePadding bool) []int {
	if maxBatchSize <= 0 {
		return nil
	}
	sizes := make([]int, 0, 3+maxBatchSize/8)
	for _, s := range []int{1, 2, 4} {
		if s <= maxBatchSize {
			sizes = append(sizes, s)
		}
	}
	for s := 8; s <= maxBatchSize; s += 8 {
		sizes = append(sizes, s)
	}
	if enablePadding && sizes[len(sizes)-1] != maxBatchSize {
		sizes = append(sizes, maxBatchSize)
	}
	return sizes
}

// normalizedBatchSizes returns the bucket list sorted ascending with
// duplicates removed.
func normalizedBatchSizes(sizes []int) []int {
	out := slices.Clone(sizes)
	slices.Sort(out)
	return slices.Compact(out)
}
