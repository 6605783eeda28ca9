package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAutoDeployArgs(t *testing.T) {
	t.Run("Should finalize with restricted-backend defaults", func(t *testing.T) {
		args, err := NewAutoDeployArgs("m", nil)

		require.NoError(t, err)
		assert.True(t, args.Finalized())
		assert.Equal(t, BackendAutoDeploy, args.Backend)
		assert.Equal(t, FactoryCausalLM, args.ModelFactory)
		assert.Equal(t, "MultiHeadLatentAttention", args.MLABackend)
		assert.Equal(t, 0.8, args.FreeMemRatio)
		assert.False(t, args.SkipLoadingWeights)
		assert.Equal(t, AutoDeployAttentionFlashInfer, args.AttnBackend)
	})

	t.Run("Should accept custom values for its own fields", func(t *testing.T) {
		args, err := NewAutoDeployArgs("m", map[string]any{
			"model_factory":        "AutoModelForImageTextToText",
			"skip_loading_weights": true,
			"free_mem_ratio":       0.5,
			"simple_shard_only":    true,
			"model_kwargs":         map[string]any{"trust_remote_code": true},
		})

		require.NoError(t, err)
		assert.Equal(t, FactoryImageTextToText, args.ModelFactory)
		assert.True(t, args.SkipLoadingWeights)
		assert.Equal(t, 0.5, args.FreeMemRatio)
		assert.True(t, args.SimpleShardOnly)
		assert.Equal(t, true, args.ModelKwargs["trust_remote_code"])
	})

	t.Run("Should reject a model factory outside the declared set", func(t *testing.T) {
		_, err := NewAutoDeployArgs("m", map[string]any{"model_factory": "AutoModel"})

		var fieldErr *FieldConstraintError
		require.ErrorAs(t, err, &fieldErr)
		assert.Equal(t, "model_factory", fieldErr.Field)
	})

	t.Run("Should reject a free memory ratio outside the unit interval", func(t *testing.T) {
		_, err := NewAutoDeployArgs("m", map[string]any{"free_mem_ratio": 1.5})

		var fieldErr *FieldConstraintError
		require.ErrorAs(t, err, &fieldErr)
		assert.Equal(t, "free_mem_ratio", fieldErr.Field)
	})
}

func TestAutoDeployParallelRestrictions(t *testing.T) {
	t.Run("Should allow scaling through world_size alone", func(t *testing.T) {
		args, err := NewAutoDeployArgs("m", map[string]any{"world_size": 8})

		require.NoError(t, err)
		assert.Equal(t, 8, args.WorldSize)
	})

	restricted := map[string]any{
		"tensor_parallel_size":      2,
		"pipeline_parallel_size":    2,
		"context_parallel_size":     2,
		"moe_cluster_parallel_size": 2,
		"moe_tensor_parallel_size":  2,
		"moe_expert_parallel_size":  2,
		"enable_attention_dp":       true,
		"cp_config":                 map[string]any{"kind": "ring"},
	}
	for field, value := range restricted {
		t.Run("Should reject "+field+" set away from its default", func(t *testing.T) {
			_, err := NewAutoDeployArgs("m", map[string]any{field: value})

			var crossErr *CrossFieldConsistencyError
			require.ErrorAs(t, err, &crossErr)
			assert.Contains(t, crossErr.Fields, field)
			assert.Contains(t, crossErr.Reason, "world_size")
		})
	}

	t.Run("Should list every offending field together", func(t *testing.T) {
		_, err := NewAutoDeployArgs("m", map[string]any{
			"tensor_parallel_size":   4,
			"pipeline_parallel_size": 2,
		})

		var crossErr *CrossFieldConsistencyError
		require.ErrorAs(t, err, &crossErr)
		assert.Len(t, crossErr.Fields, 2)
	})
}

func TestAutoDeployDerivedFields(t *testing.T) {
	t.Run("Should derive the flashinfer page size", func(t *testing.T) {
		args, err := NewAutoDeployArgs("m", nil)

		require.NoError(t, err)
		assert.Equal(t, autoDeployPagedAttentionPageSize, args.AttnPageSize)
	})

	t.Run("Should derive the triton page size from max_seq_len", func(t *testing.T) {
		args, err := NewAutoDeployArgs("m", map[string]any{
			"attn_backend": "triton",
			"max_seq_len":  1024,
		})

		require.NoError(t, err)
		assert.Equal(t, 1024, args.AttnPageSize)
	})

	t.Run("Should fail triton attention without max_seq_len", func(t *testing.T) {
		_, err := NewAutoDeployArgs("m", map[string]any{"attn_backend": "triton"})

		var crossErr *CrossFieldConsistencyError
		require.ErrorAs(t, err, &crossErr)
	})

	t.Run("Should keep an explicit page size", func(t *testing.T) {
		args, err := NewAutoDeployArgs("m", map[string]any{"attn_page_size": 128})

		require.NoError(t, err)
		assert.Equal(t, 128, args.AttnPageSize)
	})

	t.Run("Should resolve cuda graph buckets", func(t *testing.T) {
		args, err := NewAutoDeployArgs("m", map[string]any{
			"cuda_graph_config": map[string]any{"max_batch_size": 4},
		})

		require.NoError(t, err)
		require.NotNil(t, args.CudaGraphConfig)
		assert.Equal(t, []int{1, 2, 4}, args.CudaGraphConfig.BatchSizes)
	})
}

func TestAutoDeployArgsSurface(t *testing.T) {
	t.Run("Should reconstruct an observably equal aggregate from AsMap", func(t *testing.T) {
		args, err := NewAutoDeployArgs("m", map[string]any{
			"free_mem_ratio": 0.7,
			"world_size":     4,
		})
		require.NoError(t, err)

		exported, err := args.AsMap()
		require.NoError(t, err)
		rebuilt, err := NewAutoDeployArgsFromMap(exported)
		require.NoError(t, err)

		assert.True(t, args.Equal(rebuilt))
	})

	t.Run("Should return the aggregate itself as backend config", func(t *testing.T) {
		args, err := NewAutoDeployArgs("m", nil)
		require.NoError(t, err)

		assert.Same(t, args, args.BackendConfig())
	})

	t.Run("Should reject assignments once finalized", func(t *testing.T) {
		args, err := NewAutoDeployArgs("m", nil)
		require.NoError(t, err)

		require.ErrorIs(t, args.Set("free_mem_ratio", 0.5), ErrFinalized)

		var unknownErr *UnknownFieldError
		require.ErrorAs(t, args.Set("free_memratio", 0.5), &unknownErr)
	})
}
