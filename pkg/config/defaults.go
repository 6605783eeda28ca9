package config

import (
	"sync"

	"github.com/modelserve/modelserve/pkg/config/definition"
)

const (
	variantTorch      = definition.VariantTorch
	variantEngine     = definition.VariantEngine
	variantAutoDeploy = definition.VariantAutoDeploy

	// Shared value objects take their defaults from the common sections,
	// which every variant registry carries.
	variantShared = definition.VariantTorch
)

var (
	registries   = map[definition.Variant]*definition.Registry{}
	registriesMu sync.Mutex
)

// registryFor returns the cached field registry for an aggregate variant.
func registryFor(variant definition.Variant) *definition.Registry {
	registriesMu.Lock()
	defer registriesMu.Unlock()
	if reg, ok := registries[variant]; ok {
		return reg
	}
	reg := definition.CreateRegistry(variant)
	registries[variant] = reg
	return reg
}

func getString(registry *definition.Registry, path string) string {
	if val := registry.GetDefault(path); val != nil {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return ""
}

func getInt(registry *definition.Registry, path string) int {
	if val := registry.GetDefault(path); val != nil {
		if i, ok := val.(int); ok {
			return i
		}
	}
	return 0
}

func getBool(registry *definition.Registry, path string) bool {
	if val := registry.GetDefault(path); val != nil {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return false
}

func getFloat(registry *definition.Registry, path string) float64 {
	if val := registry.GetDefault(path); val != nil {
		if f, ok := val.(float64); ok {
			return f
		}
	}
	return 0
}

func buildKVCacheConfig(registry *definition.Registry) KVCacheConfig {
	return KVCacheConfig{
		EnableBlockReuse:   getBool(registry, "kv_cache_config.enable_block_reuse"),
		OnboardBlocks:      getBool(registry, "kv_cache_config.onboard_blocks"),
		EventBufferMaxSize: getInt(registry, "kv_cache_config.event_buffer_max_size"),
		EnablePartialReuse: getBool(registry, "kv_cache_config.enable_partial_reuse"),
		CopyOnPartialReuse: getBool(registry, "kv_cache_config.copy_on_partial_reuse"),
	}
}

func buildDynamicBatchConfig(registry *definition.Registry) DynamicBatchConfig {
	return DynamicBatchConfig{
		EnableBatchSizeTuning:    getBool(registry, "scheduler_config.dynamic_batch_config.enable_batch_size_tuning"),
		EnableMaxNumTokensTuning: getBool(registry, "scheduler_config.dynamic_batch_config.enable_max_num_tokens_tuning"),
		DynamicBatchMovingAverageWindow: getInt(
			registry,
			"scheduler_config.dynamic_batch_config.dynamic_batch_moving_average_window",
		),
	}
}

func buildSchedulerConfig(registry *definition.Registry) SchedulerConfig {
	return SchedulerConfig{
		CapacitySchedulerPolicy: CapacitySchedulerPolicy(
			getString(registry, "scheduler_config.capacity_scheduler_policy"),
		),
		ContextChunkingPolicy: ContextChunkingPolicy(
			getString(registry, "scheduler_config.context_chunking_policy"),
		),
	}
}

func buildPeftCacheConfig(registry *definition.Registry) PeftCacheConfig {
	return PeftCacheConfig{
		NumHostModuleLayer:     getInt(registry, "peft_cache_config.num_host_module_layer"),
		NumDeviceModuleLayer:   getInt(registry, "peft_cache_config.num_device_module_layer"),
		OptimalAdapterSize:     getInt(registry, "peft_cache_config.optimal_adapter_size"),
		MaxAdapterSize:         getInt(registry, "peft_cache_config.max_adapter_size"),
		NumPutWorkers:          getInt(registry, "peft_cache_config.num_put_workers"),
		NumEnsureWorkers:       getInt(registry, "peft_cache_config.num_ensure_workers"),
		NumCopyStreams:         getInt(registry, "peft_cache_config.num_copy_streams"),
		MaxPagesPerBlockHost:   getInt(registry, "peft_cache_config.max_pages_per_block_host"),
		MaxPagesPerBlockDevice: getInt(registry, "peft_cache_config.max_pages_per_block_device"),
		LoraPrefetchDir:        getString(registry, "peft_cache_config.lora_prefetch_dir"),
	}
}

func buildLookaheadConfig(registry *definition.Registry) LookaheadConfig {
	return LookaheadConfig{
		DecodingType:           getString(registry, "speculative_config.decoding_type"),
		MaxWindowSize:          getInt(registry, "speculative_config.max_window_size"),
		MaxNgramSize:           getInt(registry, "speculative_config.max_ngram_size"),
		MaxVerificationSetSize: getInt(registry, "speculative_config.max_verification_set_size"),
	}
}

func buildBuildConfig(registry *definition.Registry) BuildConfig {
	return BuildConfig{
		MaxInputLen:   getInt(registry, "build_config.max_input_len"),
		MaxSeqLen:     getInt(registry, "build_config.max_seq_len"),
		MaxBatchSize:  getInt(registry, "build_config.max_batch_size"),
		MaxBeamWidth:  getInt(registry, "build_config.max_beam_width"),
		MaxNumTokens:  getInt(registry, "build_config.max_num_tokens"),
		StronglyTyped: getBool(registry, "build_config.strongly_typed"),
	}
}

func buildBaseArgs(registry *definition.Registry) BaseArgs {
	return BaseArgs{
		Model:                  getString(registry, "model"),
		Backend:                getString(registry, "backend"),
		MaxInputLen:            getInt(registry, "max_input_len"),
		MaxSeqLen:              getInt(registry, "max_seq_len"),
		MaxBatchSize:           getInt(registry, "max_batch_size"),
		MaxNumTokens:           getInt(registry, "max_num_tokens"),
		MaxBeamWidth:           getInt(registry, "max_beam_width"),
		LoadFormat:             LoadFormat(getString(registry, "load_format")),
		WorldSize:              getInt(registry, "world_size"),
		TensorParallelSize:     getInt(registry, "tensor_parallel_size"),
		PipelineParallelSize:   getInt(registry, "pipeline_parallel_size"),
		ContextParallelSize:    getInt(registry, "context_parallel_size"),
		MoeClusterParallelSize: getInt(registry, "moe_cluster_parallel_size"),
		MoeTensorParallelSize:  getInt(registry, "moe_tensor_parallel_size"),
		MoeExpertParallelSize:  getInt(registry, "moe_expert_parallel_size"),
		EnableAttentionDP:      getBool(registry, "enable_attention_dp"),
		KVCacheConfig:          buildKVCacheConfig(registry),
		SchedulerConfig:        buildSchedulerConfig(registry),
		PeftCacheConfig:        buildPeftCacheConfig(registry),
	}
}
