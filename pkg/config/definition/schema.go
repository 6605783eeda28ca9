package definition

import "reflect"

// Variant selects which aggregate's field set a registry describes.
type Variant string

const (
	VariantTorch      Variant = "torch"
	VariantEngine     Variant = "tensorrt"
	VariantAutoDeploy Variant = "autodeploy"
)

var (
	intType      = reflect.TypeOf(0)
	boolType     = reflect.TypeOf(false)
	stringType   = reflect.TypeOf("")
	float64Type  = reflect.TypeOf(float64(0))
	intSliceType = reflect.TypeOf([]int(nil))
	mapType      = reflect.TypeOf(map[string]any(nil))
)

// CreateRegistry creates and populates the registry for one aggregate
// variant. This is the single source of truth for all field defaults.
func CreateRegistry(variant Variant) *Registry {
	registry := NewRegistry()
	registerCoreFields(registry)
	registerParallelFields(registry)
	registerKVCacheFields(registry)
	registerSchedulerFields(registry)
	registerPeftCacheFields(registry)
	registerSpeculativeFields(registry)
	switch variant {
	case VariantTorch:
		registerTorchFields(registry)
	case VariantEngine:
		registerBuildFields(registry)
	case VariantAutoDeploy:
		registerAutoDeployFields(registry)
	}
	return registry
}

func registerCoreFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path: "model", Default: "", Type: stringType,
		Help: "Model name or path; for engine loads, the artifact directory",
	})
	registry.Register(&FieldDef{
		Path: "backend", Default: "", Type: stringType,
		Help: "Execution backend selector; set by the aggregate factory",
	})
	registry.Register(&FieldDef{
		Path: "max_input_len", Default: 1024, Type: intType,
		Help: "Maximum prompt length in tokens",
	})
	registry.Register(&FieldDef{
		Path: "max_seq_len", Default: 0, Type: intType,
		Help: "Maximum total sequence length; 0 leaves it to the engine",
	})
	registry.Register(&FieldDef{
		Path: "max_batch_size", Default: 2048, Type: intType,
		Help: "Maximum number of requests batched together",
	})
	registry.Register(&FieldDef{
		Path: "max_num_tokens", Default: 8192, Type: intType,
		Help: "Maximum tokens across all requests in one scheduling step",
	})
	registry.Register(&FieldDef{
		Path: "max_beam_width", Default: 1, Type: intType,
		Help: "Maximum beam width for beam-search decoding",
	})
	registry.Register(&FieldDef{
		Path: "load_format", Default: "auto", Type: stringType,
		Help: "Weight-loading strategy: auto or dummy",
	})
}

func registerParallelFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path: "world_size", Default: 1, Type: intType,
		Help: "Total number of ranks in the serving job",
	})
	registry.Register(&FieldDef{
		Path: "tensor_parallel_size", Default: 1, Type: intType,
		Help: "Tensor-parallel group size",
	})
	registry.Register(&FieldDef{
		Path: "pipeline_parallel_size", Default: 1, Type: intType,
		Help: "Pipeline-parallel group size",
	})
	registry.Register(&FieldDef{
		Path: "context_parallel_size", Default: 1, Type: intType,
		Help: "Context-parallel group size",
	})
	registry.Register(&FieldDef{
		Path: "moe_cluster_parallel_size", Default: 1, Type: intType,
		Help: "MoE cluster-parallel group size",
	})
	registry.Register(&FieldDef{
		Path: "moe_tensor_parallel_size", Default: 1, Type: intType,
		Help: "MoE tensor-parallel group size",
	})
	registry.Register(&FieldDef{
		Path: "moe_expert_parallel_size", Default: 1, Type: intType,
		Help: "MoE expert-parallel group size",
	})
	registry.Register(&FieldDef{
		Path: "enable_attention_dp", Default: false, Type: boolType,
		Help: "Enable data-parallel attention",
	})
	registry.Register(&FieldDef{
		Path: "cp_config", Default: nil, Type: mapType,
		Help: "Context-parallel sub-configuration",
	})
}

func registerKVCacheFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path: "kv_cache_config.enable_block_reuse", Default: true, Type: boolType,
		Help: "Reuse cache blocks across requests with shared prefixes",
	})
	registry.Register(&FieldDef{
		Path: "kv_cache_config.max_tokens", Default: nil, Type: intType,
		Help: "Hard cap on tokens held in the KV cache",
	})
	registry.Register(&FieldDef{
		Path: "kv_cache_config.max_attention_window", Default: nil, Type: intSliceType,
		Help: "Per-layer attention window sizes",
	})
	registry.Register(&FieldDef{
		Path: "kv_cache_config.sink_token_length", Default: nil, Type: intType,
		Help: "Number of sink tokens always kept in cache",
	})
	registry.Register(&FieldDef{
		Path: "kv_cache_config.free_gpu_memory_fraction", Default: nil, Type: float64Type,
		Help: "Fraction of free GPU memory the cache may claim, in [0, 1]",
	})
	registry.Register(&FieldDef{
		Path: "kv_cache_config.host_cache_size", Default: nil, Type: intType,
		Help: "Host-side secondary cache size in bytes",
	})
	registry.Register(&FieldDef{
		Path: "kv_cache_config.onboard_blocks", Default: true, Type: boolType,
		Help: "Copy offloaded blocks back to GPU before reuse",
	})
	registry.Register(&FieldDef{
		Path: "kv_cache_config.cross_kv_cache_fraction", Default: nil, Type: float64Type,
		Help: "Cache fraction reserved for cross attention, in [0, 1]",
	})
	registry.Register(&FieldDef{
		Path: "kv_cache_config.secondary_offload_min_priority", Default: nil, Type: intType,
		Help: "Minimum priority for offload to secondary cache",
	})
	registry.Register(&FieldDef{
		Path: "kv_cache_config.event_buffer_max_size", Default: 0, Type: intType,
		Help: "Cache event buffer capacity; 0 disables events",
	})
	registry.Register(&FieldDef{
		Path: "kv_cache_config.enable_partial_reuse", Default: true, Type: boolType,
		Help: "Reuse partially matched cache blocks",
	})
	registry.Register(&FieldDef{
		Path: "kv_cache_config.copy_on_partial_reuse", Default: true, Type: boolType,
		Help: "Copy partially reused blocks instead of sharing them",
	})
}

func registerSchedulerFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path: "scheduler_config.capacity_scheduler_policy", Default: "GUARANTEED_NO_EVICT", Type: stringType,
		Help: "Capacity policy: GUARANTEED_NO_EVICT, MAX_UTILIZATION, or STATIC_BATCH",
	})
	registry.Register(&FieldDef{
		Path: "scheduler_config.context_chunking_policy", Default: "FIRST_COME_FIRST_SERVED", Type: stringType,
		Help: "Context chunking policy: FIRST_COME_FIRST_SERVED or EQUAL_PROGRESS",
	})
	registry.Register(&FieldDef{
		Path: "scheduler_config.dynamic_batch_config.enable_batch_size_tuning", Default: false, Type: boolType,
		Help: "Tune batch size from runtime statistics",
	})
	registry.Register(&FieldDef{
		Path: "scheduler_config.dynamic_batch_config.enable_max_num_tokens_tuning", Default: false, Type: boolType,
		Help: "Tune max token count from runtime statistics",
	})
	registry.Register(&FieldDef{
		Path: "scheduler_config.dynamic_batch_config.dynamic_batch_moving_average_window", Default: 128, Type: intType,
		Help: "Moving-average window for dynamic batch statistics",
	})
}

func registerPeftCacheFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path: "peft_cache_config.num_host_module_layer", Default: 0, Type: intType,
		Help: "Max adapter module-layer pairs cached on host",
	})
	registry.Register(&FieldDef{
		Path: "peft_cache_config.num_device_module_layer", Default: 0, Type: intType,
		Help: "Max adapter module-layer pairs cached on device",
	})
	registry.Register(&FieldDef{
		Path: "peft_cache_config.optimal_adapter_size", Default: 8, Type: intType,
		Help: "Adapter size the cache layout is optimized for",
	})
	registry.Register(&FieldDef{
		Path: "peft_cache_config.max_adapter_size", Default: 64, Type: intType,
		Help: "Largest adapter size the cache accepts",
	})
	registry.Register(&FieldDef{
		Path: "peft_cache_config.num_put_workers", Default: 1, Type: intType,
		Help: "Worker threads writing adapters into the cache",
	})
	registry.Register(&FieldDef{
		Path: "peft_cache_config.num_ensure_workers", Default: 1, Type: intType,
		Help: "Worker threads ensuring adapters are resident",
	})
	registry.Register(&FieldDef{
		Path: "peft_cache_config.num_copy_streams", Default: 1, Type: intType,
		Help: "Copy streams for host/device adapter transfer",
	})
	registry.Register(&FieldDef{
		Path: "peft_cache_config.max_pages_per_block_host", Default: 24, Type: intType,
		Help: "Pages per host cache block",
	})
	registry.Register(&FieldDef{
		Path: "peft_cache_config.max_pages_per_block_device", Default: 8, Type: intType,
		Help: "Pages per device cache block",
	})
	registry.Register(&FieldDef{
		Path: "peft_cache_config.device_cache_percent", Default: nil, Type: float64Type,
		Help: "Fraction of free device memory for the adapter cache, in [0, 1]",
	})
	registry.Register(&FieldDef{
		Path: "peft_cache_config.host_cache_size", Default: nil, Type: intType,
		Help: "Host adapter cache size in bytes",
	})
	registry.Register(&FieldDef{
		Path: "peft_cache_config.lora_prefetch_dir", Default: "", Type: stringType,
		Help: "Directory of adapters to prefetch at startup",
	})
}

func registerSpeculativeFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path: "speculative_config", Default: nil, Type: mapType,
		Help: "Speculative-decoding configuration; nil disables it",
	})
	registry.Register(&FieldDef{
		Path: "speculative_config.decoding_type", Default: "Lookahead", Type: stringType,
		Help: "Speculative decoding algorithm",
	})
	registry.Register(&FieldDef{
		Path: "speculative_config.max_window_size", Default: 4, Type: intType,
		Help: "Lookahead window size",
	})
	registry.Register(&FieldDef{
		Path: "speculative_config.max_ngram_size", Default: 3, Type: intType,
		Help: "Largest n-gram used for verification",
	})
	registry.Register(&FieldDef{
		Path: "speculative_config.max_verification_set_size", Default: 4, Type: intType,
		Help: "Verification candidates kept per step",
	})
}

func registerCudaGraphFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path: "cuda_graph_config", Default: nil, Type: mapType,
		Help: "CUDA-graph capture configuration; nil disables capture",
	})
	registry.Register(&FieldDef{
		Path: "cuda_graph_config.batch_sizes", Default: nil, Type: intSliceType,
		Help: "Batch-size buckets to capture graphs for",
	})
	registry.Register(&FieldDef{
		Path: "cuda_graph_config.max_batch_size", Default: 0, Type: intType,
		Help: "Largest batch size to capture; 0 means unset",
	})
	registry.Register(&FieldDef{
		Path: "cuda_graph_config.enable_padding", Default: false, Type: boolType,
		Help: "Pad runtime batches up to the nearest captured bucket",
	})
}

func registerTorchFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path: "attn_backend", Default: "TRTLLM", Type: stringType,
		Help: "Attention kernel backend: TRTLLM, FLASHINFER, or VANILLA",
	})
	registry.Register(&FieldDef{
		Path: "attn_page_size", Default: 0, Type: intType,
		Help: "Attention page size in tokens; 0 derives it from the backend",
	})
	registerCudaGraphFields(registry)
}

func registerBuildFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path: "build_config", Default: nil, Type: mapType, Class: ClassBuild,
		Help: "Build specification embedded in the compiled engine",
	})
	registry.Register(&FieldDef{
		Path: "build_config.max_input_len", Default: 1024, Type: intType, Class: ClassBuild,
		Help: "Build-time maximum prompt length",
	})
	registry.Register(&FieldDef{
		Path: "build_config.max_seq_len", Default: 2048, Type: intType, Class: ClassBuild,
		Help: "Build-time maximum sequence length",
	})
	registry.Register(&FieldDef{
		Path: "build_config.max_batch_size", Default: 256, Type: intType, Class: ClassBuild,
		Help: "Build-time maximum batch size",
	})
	registry.Register(&FieldDef{
		Path: "build_config.max_beam_width", Default: 1, Type: intType, Class: ClassBuild,
		Help: "Build-time maximum beam width",
	})
	registry.Register(&FieldDef{
		Path: "build_config.max_num_tokens", Default: 8192, Type: intType, Class: ClassBuild,
		Help: "Build-time maximum token count per step",
	})
	registry.Register(&FieldDef{
		Path: "build_config.opt_level", Default: nil, Type: intType, Class: ClassBuild,
		Help: "Builder optimization level, 0 through 5",
	})
	registry.Register(&FieldDef{
		Path: "build_config.strongly_typed", Default: true, Type: boolType, Class: ClassBuild,
		Help: "Build the engine with strong typing",
	})
}

func registerAutoDeployFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path: "model_factory", Default: "AutoModelForCausalLM", Type: stringType,
		Help: "Model factory: AutoModelForCausalLM or AutoModelForImageTextToText",
	})
	registry.Register(&FieldDef{
		Path: "model_kwargs", Default: nil, Type: mapType,
		Help: "Extra keyword arguments forwarded to the model factory",
	})
	registry.Register(&FieldDef{
		Path: "mla_backend", Default: "MultiHeadLatentAttention", Type: stringType,
		Help: "Multi-head latent attention backend",
	})
	registry.Register(&FieldDef{
		Path: "skip_loading_weights", Default: false, Type: boolType,
		Help: "Initialize with random weights instead of loading",
	})
	registry.Register(&FieldDef{
		Path: "free_mem_ratio", Default: 0.8, Type: float64Type,
		Help: "Fraction of free GPU memory given to the KV cache, in [0, 1]",
	})
	registry.Register(&FieldDef{
		Path: "simple_shard_only", Default: false, Type: boolType,
		Help: "Force simple sharding and skip the sharding optimizer",
	})
	registry.Register(&FieldDef{
		Path: "attn_backend", Default: "flashinfer", Type: stringType,
		Help: "Attention kernel backend: flashinfer or triton",
	})
	registry.Register(&FieldDef{
		Path: "attn_page_size", Default: 0, Type: intType,
		Help: "Attention page size in tokens; 0 derives it from the backend",
	})
	registerCudaGraphFields(registry)
}
