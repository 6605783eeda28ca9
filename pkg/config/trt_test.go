package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngineArgs(t *testing.T) {
	t.Run("Should promote build ceilings into unset runtime fields", func(t *testing.T) {
		args, err := NewEngineArgs("m", nil)

		require.NoError(t, err)
		assert.True(t, args.Finalized())
		assert.Equal(t, BackendTensorRT, args.Backend)
		require.NotNil(t, args.BuildConfig)
		assert.Equal(t, 1024, args.MaxInputLen)
		assert.Equal(t, 2048, args.MaxSeqLen)
		assert.Equal(t, 256, args.MaxBatchSize)
		assert.Equal(t, 8192, args.MaxNumTokens)
		assert.Equal(t, 1, args.MaxBeamWidth)
	})

	t.Run("Should let explicit runtime ceilings win over the build specification", func(t *testing.T) {
		args, err := NewEngineArgs("m", map[string]any{"max_batch_size": 64})

		require.NoError(t, err)
		assert.Equal(t, 64, args.MaxBatchSize)
		assert.Equal(t, 256, args.BuildConfig.MaxBatchSize)
	})

	t.Run("Should replace the build specification atomically", func(t *testing.T) {
		args, err := NewEngineArgs("m", map[string]any{
			"build_config": map[string]any{"max_seq_len": 8192},
		})

		require.NoError(t, err)
		assert.Equal(t, 8192, args.BuildConfig.MaxSeqLen)
		// Fields the replacement block omits take construction defaults.
		assert.Equal(t, 1024, args.BuildConfig.MaxInputLen)
		assert.True(t, args.BuildConfig.StronglyTyped)
		assert.Equal(t, 8192, args.MaxSeqLen)
	})

	t.Run("Should reject an opt level outside the builder range", func(t *testing.T) {
		_, err := NewEngineArgs("m", map[string]any{
			"build_config": map[string]any{"opt_level": 9},
		})

		var fieldErr *FieldConstraintError
		require.ErrorAs(t, err, &fieldErr)
		assert.Equal(t, "build_config.opt_level", fieldErr.Field)
	})
}

func TestNewEngineArgsFromBuildConfig(t *testing.T) {
	t.Run("Should wrap an existing build specification", func(t *testing.T) {
		build := NewBuildConfig()
		build.MaxSeqLen = 16384
		build.MaxBatchSize = 32

		args, err := NewEngineArgsFromBuildConfig("m", build, nil)

		require.NoError(t, err)
		assert.Equal(t, 16384, args.BuildConfig.MaxSeqLen)
		assert.Equal(t, 16384, args.MaxSeqLen)
		assert.Equal(t, 32, args.MaxBatchSize)
	})

	t.Run("Should fall back to a default build specification when given nil", func(t *testing.T) {
		args, err := NewEngineArgsFromBuildConfig("m", nil, nil)

		require.NoError(t, err)
		require.NotNil(t, args.BuildConfig)
		assert.Equal(t, 2048, args.BuildConfig.MaxSeqLen)
	})
}

func TestEngineArgsRoundTrip(t *testing.T) {
	t.Run("Should reconstruct an observably equal aggregate from AsMap", func(t *testing.T) {
		args, err := NewEngineArgs("m", map[string]any{
			"max_beam_width": 4,
			"build_config":   map[string]any{"max_seq_len": 4096, "max_beam_width": 4},
		})
		require.NoError(t, err)

		exported, err := args.AsMap()
		require.NoError(t, err)
		rebuilt, err := NewEngineArgsFromMap(exported)
		require.NoError(t, err)

		assert.True(t, args.Equal(rebuilt))
	})
}

func TestEngineDirPersistence(t *testing.T) {
	t.Run("Should round-trip through a persisted engine directory", func(t *testing.T) {
		dir := t.TempDir()
		args, err := NewEngineArgs("m", map[string]any{
			"build_config": map[string]any{"max_seq_len": 4096},
		})
		require.NoError(t, err)

		require.NoError(t, args.SaveEngineDir(dir))
		loaded, err := NewEngineArgsFromEngineDir(dir, nil)
		require.NoError(t, err)

		assert.True(t, args.Equal(loaded))
	})

	t.Run("Should keep unset fields unset across persistence", func(t *testing.T) {
		dir := t.TempDir()
		args, err := NewEngineArgs("m", nil)
		require.NoError(t, err)
		require.NoError(t, args.SaveEngineDir(dir))

		loaded, err := NewEngineArgsFromEngineDir(dir, nil)

		require.NoError(t, err)
		assert.Nil(t, loaded.KVCacheConfig.MaxAttentionWindow)
		assert.Nil(t, loaded.SpeculativeConfig)
		assert.True(t, args.Equal(loaded))
	})

	t.Run("Should apply runtime-only overrides on load", func(t *testing.T) {
		dir := t.TempDir()
		args, err := NewEngineArgs("m", nil)
		require.NoError(t, err)
		require.NoError(t, args.SaveEngineDir(dir))

		loaded, err := NewEngineArgsFromEngineDir(dir, map[string]any{
			"kv_cache_config": map[string]any{"enable_block_reuse": false},
		})

		require.NoError(t, err)
		assert.False(t, loaded.KVCacheConfig.EnableBlockReuse)
		assert.Equal(t, args.BuildConfig.MaxSeqLen, loaded.BuildConfig.MaxSeqLen)
	})

	t.Run("Should reject overrides of build-class fields on load", func(t *testing.T) {
		dir := t.TempDir()
		args, err := NewEngineArgs("m", nil)
		require.NoError(t, err)
		require.NoError(t, args.SaveEngineDir(dir))

		_, err = NewEngineArgsFromEngineDir(dir, map[string]any{
			"build_config": map[string]any{"max_seq_len": 999},
		})

		var fieldErr *FieldConstraintError
		require.ErrorAs(t, err, &fieldErr)
		assert.Equal(t, "build_config", fieldErr.Field)
		assert.Equal(t, "runtime-only override", fieldErr.Constraint)
	})

	t.Run("Should reject an unsupported artifact version", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("version: 99\nargs: {}\n"), 0o644))

		_, err := NewEngineArgsFromEngineDir(dir, nil)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "version")
	})

	t.Run("Should refuse to persist a non-finalized aggregate", func(t *testing.T) {
		args := defaultEngineArgs()

		err := args.SaveEngineDir(t.TempDir())

		require.Error(t, err)
	})
}
