// Package executor models the configuration surface of the native execution
// engine. It is owned by the engine's own release cycle; the configuration
// core reads it only to convert into and to detect drift against, and never
// constructs engine instances.
package executor

// CapacitySchedulerPolicy is the engine's capacity policy enumeration.
type CapacitySchedulerPolicy string

const (
	CapacityGuaranteedNoEvict CapacitySchedulerPolicy = "GUARANTEED_NO_EVICT"
	CapacityMaxUtilization    CapacitySchedulerPolicy = "MAX_UTILIZATION"
	CapacityStaticBatch       CapacitySchedulerPolicy = "STATIC_BATCH"
)

// ContextChunkingPolicy is the engine's chunking policy enumeration.
type ContextChunkingPolicy string

const (
	ChunkingFirstComeFirstServed ContextChunkingPolicy = "FIRST_COME_FIRST_SERVED"
	ChunkingEqualProgress        ContextChunkingPolicy = "EQUAL_PROGRESS"
)

// KvCacheConfig is the engine's KV cache configuration.
type KvCacheConfig struct {
	EnableBlockReuse            bool
	MaxTokens                   *int
	MaxAttentionWindow          []int
	SinkTokenLength             *int
	FreeGpuMemoryFraction       *float64
	HostCacheSize               *int
	OnboardBlocks               bool
	CrossKvCacheFraction        *float64
	SecondaryOffloadMinPriority *int
	EventBufferMaxSize          int
	EnablePartialReuse          bool
	CopyOnPartialReuse          bool
}

// NewDefaultKvCacheConfig returns the engine's own defaults.
func NewDefaultKvCacheConfig() KvCacheConfig {
	return KvCacheConfig{
		EnableBlockReuse:   true,
		OnboardBlocks:      true,
		EnablePartialReuse: true,
		CopyOnPartialReuse: true,
	}
}

// DynamicBatchConfig is the engine's dynamic batch tuning configuration.
type DynamicBatchConfig struct {
	EnableBatchSizeTuning           bool
	EnableMaxNumTokensTuning        bool
	DynamicBatchMovingAverageWindow int
}

// NewDefaultDynamicBatchConfig returns the engine's own defaults.
func NewDefaultDynamicBatchConfig() DynamicBatchConfig {
	return DynamicBatchConfig{DynamicBatchMovingAverageWindow: 128}
}

// SchedulerConfig is the engine's request scheduler configuration.
type SchedulerConfig struct {
	CapacitySchedulerPolicy CapacitySchedulerPolicy
	ContextChunkingPolicy   ContextChunkingPolicy
	DynamicBatchConfig      *DynamicBatchConfig
}

// NewDefaultSchedulerConfig returns the engine's own defaults.
func NewDefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		CapacitySchedulerPolicy: CapacityGuaranteedNoEvict,
		ContextChunkingPolicy:   ChunkingFirstComeFirstServed,
	}
}

// PeftCacheConfig is the engine's LoRA adapter cache configuration.
type PeftCacheConfig struct {
	NumHostModuleLayer     int
	NumDeviceModuleLayer   int
	OptimalAdapterSize     int
	MaxAdapterSize         int
	NumPutWorkers          int
	NumEnsureWorkers       int
	NumCopyStreams         int
	MaxPagesPerBlockHost   int
	MaxPagesPerBlockDevice int
	DeviceCachePercent     *float64
	HostCacheSize          *int
	LoraPrefetchDir        string
}

// NewDefaultPeftCacheConfig returns the engine's own defaults.
func NewDefaultPeftCacheConfig() PeftCacheConfig {
	return PeftCacheConfig{
		OptimalAdapterSize:     8,
		MaxAdapterSize:         64,
		NumPutWorkers:          1,
		NumEnsureWorkers:       1,
		NumCopyStreams:         1,
		MaxPagesPerBlockHost:   24,
		MaxPagesPerBlockDevice: 8,
	}
}
