package definition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRegistry(t *testing.T) {
	t.Run("Should register shared defaults for every variant", func(t *testing.T) {
		for _, variant := range []Variant{VariantTorch, VariantEngine, VariantAutoDeploy} {
			registry := CreateRegistry(variant)

			assert.Equal(t, 2048, registry.GetDefault("max_batch_size"))
			assert.Equal(t, 1024, registry.GetDefault("max_input_len"))
			assert.Equal(t, "auto", registry.GetDefault("load_format"))
			assert.Equal(t, true, registry.GetDefault("kv_cache_config.enable_block_reuse"))
			assert.Equal(t, 128, registry.GetDefault("scheduler_config.dynamic_batch_config.dynamic_batch_moving_average_window"))
			assert.Equal(t, 8, registry.GetDefault("peft_cache_config.optimal_adapter_size"))
		}
	})

	t.Run("Should scope backend fields to their variant", func(t *testing.T) {
		torch := CreateRegistry(VariantTorch)
		engine := CreateRegistry(VariantEngine)
		autodeploy := CreateRegistry(VariantAutoDeploy)

		assert.Equal(t, "TRTLLM", torch.GetDefault("attn_backend"))
		assert.False(t, torch.Has("build_config.max_input_len"))

		assert.True(t, engine.Has("build_config.max_input_len"))
		assert.False(t, engine.Has("attn_backend"))
		assert.Equal(t, 2048, engine.GetDefault("build_config.max_seq_len"))

		assert.Equal(t, "flashinfer", autodeploy.GetDefault("attn_backend"))
		assert.Equal(t, 0.8, autodeploy.GetDefault("free_mem_ratio"))
	})

	t.Run("Should keep registration order in Paths", func(t *testing.T) {
		registry := CreateRegistry(VariantTorch)

		paths := registry.Paths()
		require.NotEmpty(t, paths)
		assert.Equal(t, "model", paths[0])
	})
}

func TestRegistry_Declares(t *testing.T) {
	t.Run("Should resolve declared leaves and their containers", func(t *testing.T) {
		registry := CreateRegistry(VariantTorch)

		assert.True(t, registry.Declares("kv_cache_config.max_tokens"))
		assert.True(t, registry.Declares("kv_cache_config"))
		assert.True(t, registry.Declares("scheduler_config.dynamic_batch_config"))
		assert.False(t, registry.Declares("kv_cache_config.max_tokenz"))
		assert.False(t, registry.Declares("bogus"))
	})
}

func TestRegistry_ClassOf(t *testing.T) {
	t.Run("Should mark build specification fields as build class", func(t *testing.T) {
		registry := CreateRegistry(VariantEngine)

		class, ok := registry.ClassOf("build_config.max_seq_len")
		require.True(t, ok)
		assert.Equal(t, ClassBuild, class)

		class, ok = registry.ClassOf("build_config")
		require.True(t, ok)
		assert.Equal(t, ClassBuild, class)
	})

	t.Run("Should default declared fields to runtime class", func(t *testing.T) {
		registry := CreateRegistry(VariantEngine)

		class, ok := registry.ClassOf("kv_cache_config.max_tokens")
		require.True(t, ok)
		assert.Equal(t, ClassRuntime, class)
	})

	t.Run("Should inherit the class from a registered prefix", func(t *testing.T) {
		registry := CreateRegistry(VariantEngine)

		// opt_level is registered directly, but an unregistered child of the
		// build block still resolves through its parent.
		class, ok := registry.ClassOf("build_config.opt_level")
		require.True(t, ok)
		assert.Equal(t, ClassBuild, class)
	})

	t.Run("Should report unknown paths", func(t *testing.T) {
		registry := CreateRegistry(VariantTorch)

		_, ok := registry.ClassOf("bogus.path")
		assert.False(t, ok)
	})
}

func TestRegistry_Register(t *testing.T) {
	t.Run("Should overwrite an existing definition without duplicating order", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(&FieldDef{Path: "a", Default: 1})
		registry.Register(&FieldDef{Path: "a", Default: 2})

		assert.Equal(t, 2, registry.GetDefault("a"))
		assert.Len(t, registry.Paths(), 1)
	})
}
