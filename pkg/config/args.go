package config

import (
	"fmt"
	"strings"

	"github.com/modelserve/modelserve/pkg/config/definition"
)

// LoadFormat selects the weight-loading strategy.
type LoadFormat string

const (
	LoadFormatAuto  LoadFormat = "auto"
	LoadFormatDummy LoadFormat = "dummy"
)

// lifecycleState tracks the configuration pipeline. Transitions run in
// declared order exactly once; a finalized aggregate is immutable.
type lifecycleState int

const (
	stateRaw lifecycleState = iota
	stateValidated
	stateDerivedResolved
	stateFinalized
)

func (s lifecycleState) String() string {
	switch s {
	case stateRaw:
		return "raw"
	case stateValidated:
		return "validated"
	case stateDerivedResolved:
		return "derived-resolved"
	case stateFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// advance moves the lifecycle forward by one step; skipping a state is a
// programming error and fails loudly.
func (s *lifecycleState) advance(to lifecycleState) error {
	if to != *s+1 {
		return fmt.Errorf("invalid lifecycle transition %s -> %s", *s, to)
	}
	*s = to
	return nil
}

// BaseArgs carries the scalar runtime knobs and value objects shared by
// every backend variant. Value objects are exclusively owned by their
// aggregate: factories always deep-copy incoming mappings, never alias them.
type BaseArgs struct {
	Model        string     `koanf:"model"          validate:"required" env:"MODEL"`
	Backend      string     `koanf:"backend"`
	MaxInputLen  int        `koanf:"max_input_len"  validate:"gt=0"     env:"MAX_INPUT_LEN"`
	MaxSeqLen    int        `koanf:"max_seq_len"    validate:"gte=0"    env:"MAX_SEQ_LEN"`
	MaxBatchSize int        `koanf:"max_batch_size" validate:"gt=0"     env:"MAX_BATCH_SIZE"`
	MaxNumTokens int        `koanf:"max_num_tokens" validate:"gt=0"     env:"MAX_NUM_TOKENS"`
	MaxBeamWidth int        `koanf:"max_beam_width" validate:"gt=0"     env:"MAX_BEAM_WIDTH"`
	LoadFormat   LoadFormat `koanf:"load_format"    validate:"oneof=auto dummy"`

	WorldSize              int            `koanf:"world_size"                validate:"gte=0" env:"WORLD_SIZE"`
	TensorParallelSize     int            `koanf:"tensor_parallel_size"      validate:"gte=1"`
	PipelineParallelSize   int            `koanf:"pipeline_parallel_size"    validate:"gte=1"`
	ContextParallelSize    int            `koanf:"context_parallel_size"     validate:"gte=1"`
	MoeClusterParallelSize int            `koanf:"moe_cluster_parallel_size" validate:"gte=1"`
	MoeTensorParallelSize  int            `koanf:"moe_tensor_parallel_size"  validate:"gte=1"`
	MoeExpertParallelSize  int            `koanf:"moe_expert_parallel_size"  validate:"gte=1"`
	EnableAttentionDP      bool           `koanf:"enable_attention_dp"`
	CPConfig               map[string]any `koanf:"cp_config"`

	KVCacheConfig     KVCacheConfig    `koanf:"kv_cache_config"`
	SchedulerConfig   SchedulerConfig  `koanf:"scheduler_config"`
	PeftCacheConfig   PeftCacheConfig  `koanf:"peft_cache_config"`
	SpeculativeConfig *LookaheadConfig `koanf:"speculative_config" validate:"omitempty"`

	state lifecycleState
}

// Finalized reports whether the aggregate has completed the pipeline.
func (a *BaseArgs) Finalized() bool {
	return a.state == stateFinalized
}

// seedOptionalConfigs materializes pointer-valued value objects with their
// registry defaults when the merged mapping carries a block for them, so a
// partial overlay keeps the defaults for fields it omits.
func (a *BaseArgs) seedOptionalConfigs(merged map[string]any) {
	if _, ok := mapValue(merged, "speculative_config"); ok && a.SpeculativeConfig == nil {
		a.SpeculativeConfig = NewLookaheadConfig()
	}
	if block, ok := mapValue(merged, "scheduler_config"); ok {
		if _, ok := mapValue(block, "dynamic_batch_config"); ok && a.SchedulerConfig.DynamicBatchConfig == nil {
			a.SchedulerConfig.DynamicBatchConfig = NewDynamicBatchConfig()
		}
	}
}

// setField applies one declared-path assignment through the registry. This is
// the single mutation path: undeclared paths fail identically to unknown keys
// at construction, and finalized aggregates reject declared paths too.
func setField(target any, registry *definition.Registry, state lifecycleState, path string, value any) error {
	if !registry.Declares(path) {
		return &UnknownFieldError{Field: path}
	}
	if state == stateFinalized {
		return ErrFinalized
	}
	return decodeStrict(nestedMapFromPath(path, value), target)
}

// nestedMapFromPath expands a dotted path into the nested mapping shape the
// decoder expects.
func nestedMapFromPath(path string, value any) map[string]any {
	parts := strings.Split(path, ".")
	out := map[string]any{parts[len(parts)-1]: value}
	for i := len(parts) - 2; i >= 0; i-- {
		out = map[string]any{parts[i]: out}
	}
	return out
}

// mapValue returns data[key] as a nested mapping when it is one.
func mapValue(data map[string]any, key string) (map[string]any, bool) {
	raw, ok := data[key]
	if !ok || raw == nil {
		return nil, false
	}
	return asStringMap(raw)
}

// runPipeline drives an aggregate through validation, derived-field
// resolution, and finalization in declared order.
func runPipeline(state *lifecycleState, validate func() error, passes []derivedPass) error {
	if err := validate(); err != nil {
		return err
	}
	if err := state.advance(stateValidated); err != nil {
		return err
	}
	for _, pass := range passes {
		if err := pass.apply(); err != nil {
			return fmt.Errorf("resolving %s: %w", pass.name, err)
		}
	}
	if err := state.advance(stateDerivedResolved); err != nil {
		return err
	}
	return state.advance(stateFinalized)
}
