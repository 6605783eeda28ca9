package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelserve/modelserve/pkg/config/definition"
)

func writeOverlay(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "overrides.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_Load(t *testing.T) {
	t.Run("Should return an empty mapping when nothing overrides defaults", func(t *testing.T) {
		loader := NewLoader(definition.VariantTorch)

		raw, err := loader.Load(context.Background())

		require.NoError(t, err)
		assert.Empty(t, raw)
		assert.Equal(t, SourceDefault, loader.Source("max_batch_size"))
	})

	t.Run("Should apply a YAML overlay file over defaults", func(t *testing.T) {
		path := writeOverlay(t, `
model: overlay-model
max_seq_len: 4096
kv_cache_config:
  enable_block_reuse: false
`)
		loader := NewLoader(definition.VariantTorch, WithOverlayFile(path))

		raw, err := loader.Load(context.Background())

		require.NoError(t, err)
		assert.Equal(t, "overlay-model", raw["model"])
		assert.Equal(t, SourceYAML, loader.Source("model"))
		assert.Equal(t, SourceYAML, loader.Source("kv_cache_config.enable_block_reuse"))
		assert.Equal(t, SourceDefault, loader.Source("max_batch_size"))

		args, err := NewTorchArgsFromMap(raw)
		require.NoError(t, err)
		assert.Equal(t, 4096, args.MaxSeqLen)
		assert.False(t, args.KVCacheConfig.EnableBlockReuse)
		assert.True(t, args.KVCacheConfig.OnboardBlocks)
	})

	t.Run("Should layer a block whose default is unset", func(t *testing.T) {
		path := writeOverlay(t, `
model: m
speculative_config:
  max_window_size: 8
`)

		args, err := LoadTorchArgs(context.Background(), WithOverlayFile(path))

		require.NoError(t, err)
		require.NotNil(t, args.SpeculativeConfig)
		assert.Equal(t, 8, args.SpeculativeConfig.MaxWindowSize)
		assert.Equal(t, "Lookahead", args.SpeculativeConfig.DecodingType)
	})

	t.Run("Should let environment variables win over the overlay", func(t *testing.T) {
		path := writeOverlay(t, "model: overlay-model\n")
		t.Setenv("MODELSERVE_MODEL", "env-model")
		t.Setenv("MODELSERVE_MAX_BATCH_SIZE", "512")
		loader := NewLoader(definition.VariantTorch, WithOverlayFile(path))

		raw, err := loader.Load(context.Background())

		require.NoError(t, err)
		assert.Equal(t, SourceEnv, loader.Source("model"))
		assert.Equal(t, SourceEnv, loader.Source("max_batch_size"))

		args, err := NewTorchArgsFromMap(raw)
		require.NoError(t, err)
		assert.Equal(t, "env-model", args.Model)
		assert.Equal(t, 512, args.MaxBatchSize)
	})

	t.Run("Should ignore unmapped variables under the prefix", func(t *testing.T) {
		t.Setenv("MODELSERVE_MODEL", "env-model")
		t.Setenv("MODELSERVE_BOGUS_KNOB", "1")

		args, err := LoadTorchArgs(context.Background())

		require.NoError(t, err)
		assert.Equal(t, "env-model", args.Model)
	})

	t.Run("Should reject deprecated keys in the overlay file", func(t *testing.T) {
		path := writeOverlay(t, "pytorch_backend_config:\n  attn_backend: TRTLLM\n")
		loader := NewLoader(definition.VariantTorch, WithOverlayFile(path))

		_, err := loader.Load(context.Background())

		var depErr *DeprecatedKeyError
		require.ErrorAs(t, err, &depErr)
		assert.Equal(t, "pytorch_backend_config", depErr.Key)
	})

	t.Run("Should fail on a missing overlay file", func(t *testing.T) {
		loader := NewLoader(definition.VariantTorch, WithOverlayFile("/nonexistent/overrides.yaml"))

		_, err := loader.Load(context.Background())

		require.Error(t, err)
	})

	t.Run("Should honor a custom environment prefix", func(t *testing.T) {
		t.Setenv("SERVE_MODEL", "prefixed-model")
		loader := NewLoader(definition.VariantTorch, WithEnvPrefix("SERVE_"))

		raw, err := loader.Load(context.Background())

		require.NoError(t, err)
		assert.Equal(t, "prefixed-model", raw["model"])
	})
}

func TestLoadEngineArgs(t *testing.T) {
	t.Run("Should keep build-ceiling promotion for keys the overlay omits", func(t *testing.T) {
		path := writeOverlay(t, `
model: engine-model
build_config:
  max_seq_len: 8192
`)

		args, err := LoadEngineArgs(context.Background(), WithOverlayFile(path))

		require.NoError(t, err)
		assert.Equal(t, 8192, args.BuildConfig.MaxSeqLen)
		assert.Equal(t, 8192, args.MaxSeqLen)
		assert.Equal(t, 256, args.MaxBatchSize)
	})
}

func TestLoadAutoDeployArgs(t *testing.T) {
	t.Run("Should enforce parallel restrictions on loaded values", func(t *testing.T) {
		path := writeOverlay(t, "model: m\ntensor_parallel_size: 2\n")

		_, err := LoadAutoDeployArgs(context.Background(), WithOverlayFile(path))

		var crossErr *CrossFieldConsistencyError
		require.ErrorAs(t, err, &crossErr)
	})
}

func TestGenerateEnvMappings(t *testing.T) {
	t.Run("Should map tagged base fields for every variant", func(t *testing.T) {
		for _, variant := range []definition.Variant{
			definition.VariantTorch, definition.VariantEngine, definition.VariantAutoDeploy,
		} {
			mappings := GenerateEnvMappings(variant)
			byVar := make(map[string]string, len(mappings))
			for _, m := range mappings {
				byVar[m.EnvVar] = m.ConfigPath
			}
			assert.Equal(t, "model", byVar["MODEL"])
			assert.Equal(t, "max_batch_size", byVar["MAX_BATCH_SIZE"])
			assert.Equal(t, "world_size", byVar["WORLD_SIZE"])
		}
	})

	t.Run("Should resolve a config path back to its variable", func(t *testing.T) {
		envVar, ok := EnvVarForPath(definition.VariantTorch, "max_seq_len")

		require.True(t, ok)
		assert.Equal(t, "MAX_SEQ_LEN", envVar)
	})
}
