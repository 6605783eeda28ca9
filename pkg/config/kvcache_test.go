package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVCacheConfig(t *testing.T) {
	t.Run("Should carry defaults matching the execution engine", func(t *testing.T) {
		cfg := NewKVCacheConfig()

		assert.True(t, cfg.EnableBlockReuse)
		assert.True(t, cfg.OnboardBlocks)
		assert.True(t, cfg.EnablePartialReuse)
		assert.True(t, cfg.CopyOnPartialReuse)
		assert.Zero(t, cfg.EventBufferMaxSize)
		assert.Nil(t, cfg.FreeGPUMemoryFraction)
		assert.Nil(t, cfg.MaxTokens)
	})

	t.Run("Should accept memory fractions at both boundaries", func(t *testing.T) {
		for _, fraction := range []float64{0.0, 1.0} {
			cfg, err := NewKVCacheConfigFromMap(map[string]any{
				"free_gpu_memory_fraction": fraction,
			})
			require.NoError(t, err)
			require.NotNil(t, cfg.FreeGPUMemoryFraction)
			assert.Equal(t, fraction, *cfg.FreeGPUMemoryFraction)
		}
	})

	t.Run("Should reject memory fractions outside the unit interval", func(t *testing.T) {
		for _, fraction := range []float64{-0.1, 1.1} {
			_, err := NewKVCacheConfigFromMap(map[string]any{
				"free_gpu_memory_fraction": fraction,
			})
			var fieldErr *FieldConstraintError
			require.ErrorAs(t, err, &fieldErr)
			assert.Equal(t, "free_gpu_memory_fraction", fieldErr.Field)
		}
	})

	t.Run("Should reject cross fractions outside the unit interval", func(t *testing.T) {
		_, err := NewKVCacheConfigFromMap(map[string]any{
			"cross_kv_cache_fraction": 1.5,
		})

		var fieldErr *FieldConstraintError
		require.ErrorAs(t, err, &fieldErr)
		assert.Equal(t, "cross_kv_cache_fraction", fieldErr.Field)
	})

	t.Run("Should reject unknown fields at construction", func(t *testing.T) {
		_, err := NewKVCacheConfigFromMap(map[string]any{
			"max_tokenz": 4096,
		})

		var unknownErr *UnknownFieldError
		require.ErrorAs(t, err, &unknownErr)
		assert.Equal(t, "max_tokenz", unknownErr.Field)
	})

	t.Run("Should reject negative attention window entries", func(t *testing.T) {
		_, err := NewKVCacheConfigFromMap(map[string]any{
			"max_attention_window": []int{4096, -1},
		})

		var fieldErr *FieldConstraintError
		require.ErrorAs(t, err, &fieldErr)
	})

	t.Run("Should keep defaults for fields a partial map omits", func(t *testing.T) {
		cfg, err := NewKVCacheConfigFromMap(map[string]any{
			"max_tokens": 8192,
		})

		require.NoError(t, err)
		require.NotNil(t, cfg.MaxTokens)
		assert.Equal(t, 8192, *cfg.MaxTokens)
		assert.True(t, cfg.EnableBlockReuse)
	})

	t.Run("Should overlay mapped fields through FromMap", func(t *testing.T) {
		cfg := NewKVCacheConfig()

		err := cfg.FromMap(map[string]any{
			"enable_block_reuse": false,
			"host_cache_size":    1 << 30,
		})

		require.NoError(t, err)
		require.NotNil(t, cfg.HostCacheSize)
		assert.Equal(t, 1<<30, *cfg.HostCacheSize)
	})
}

func TestSchedulerConfig(t *testing.T) {
	t.Run("Should default to conservative policies", func(t *testing.T) {
		cfg := NewSchedulerConfig()

		assert.Equal(t, CapacityGuaranteedNoEvict, cfg.CapacitySchedulerPolicy)
		assert.Equal(t, ChunkingFirstComeFirstServed, cfg.ContextChunkingPolicy)
		assert.Nil(t, cfg.DynamicBatchConfig)
	})

	t.Run("Should reject policy literals outside the declared set", func(t *testing.T) {
		_, err := NewSchedulerConfigFromMap(map[string]any{
			"capacity_scheduler_policy": "BEST_EFFORT",
		})

		var fieldErr *FieldConstraintError
		require.ErrorAs(t, err, &fieldErr)
		assert.Equal(t, "capacity_scheduler_policy", fieldErr.Field)
	})

	t.Run("Should seed dynamic batch defaults under a partial overlay", func(t *testing.T) {
		cfg, err := NewSchedulerConfigFromMap(map[string]any{
			"dynamic_batch_config": map[string]any{
				"enable_batch_size_tuning": true,
			},
		})

		require.NoError(t, err)
		require.NotNil(t, cfg.DynamicBatchConfig)
		assert.True(t, cfg.DynamicBatchConfig.EnableBatchSizeTuning)
		assert.Equal(t, 128, cfg.DynamicBatchConfig.DynamicBatchMovingAverageWindow)
	})

	t.Run("Should reject a non-positive moving average window", func(t *testing.T) {
		_, err := NewSchedulerConfigFromMap(map[string]any{
			"dynamic_batch_config": map[string]any{
				"dynamic_batch_moving_average_window": 0,
			},
		})

		var fieldErr *FieldConstraintError
		require.ErrorAs(t, err, &fieldErr)
	})
}

func TestPeftCacheConfig(t *testing.T) {
	t.Run("Should carry worker and page defaults", func(t *testing.T) {
		cfg := NewPeftCacheConfig()

		assert.Equal(t, 8, cfg.OptimalAdapterSize)
		assert.Equal(t, 64, cfg.MaxAdapterSize)
		assert.Equal(t, 1, cfg.NumPutWorkers)
		assert.Equal(t, 24, cfg.MaxPagesPerBlockHost)
		assert.Equal(t, 8, cfg.MaxPagesPerBlockDevice)
		assert.Nil(t, cfg.DeviceCachePercent)
	})

	t.Run("Should reject a device cache percent above one", func(t *testing.T) {
		_, err := NewPeftCacheConfigFromMap(map[string]any{
			"device_cache_percent": 1.2,
		})

		var fieldErr *FieldConstraintError
		require.ErrorAs(t, err, &fieldErr)
		assert.Equal(t, "device_cache_percent", fieldErr.Field)
	})
}
