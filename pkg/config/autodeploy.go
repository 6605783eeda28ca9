package config

import (
	"reflect"
)

// AutoDeployAttentionBackend selects the attention kernel for the restricted
// autodeploy backend.
type AutoDeployAttentionBackend string

const (
	AutoDeployAttentionFlashInfer AutoDeployAttentionBackend = "flashinfer"
	AutoDeployAttentionTriton     AutoDeployAttentionBackend = "triton"
)

// Paged reports whether the backend uses paged attention; triton attends
// over the whole sequence.
func (b AutoDeployAttentionBackend) Paged() bool {
	return b == AutoDeployAttentionFlashInfer
}

// ModelFactory selects how autodeploy materializes the model.
type ModelFactory string

const (
	FactoryCausalLM        ModelFactory = "AutoModelForCausalLM"
	FactoryImageTextToText ModelFactory = "AutoModelForImageTextToText"
)

// AutoDeployArgs is the restricted backend variant: it exports the model
// graph automatically and parallelizes only through world_size, so every
// multi-dimensional parallelism field is rejected when set away from its
// default.
type AutoDeployArgs struct {
	BaseArgs `koanf:",squash,flatten"`

	ModelFactory       ModelFactory               `koanf:"model_factory"        validate:"oneof=AutoModelForCausalLM AutoModelForImageTextToText"`
	ModelKwargs        map[string]any             `koanf:"model_kwargs"`
	MLABackend         string                     `koanf:"mla_backend"          validate:"oneof=MultiHeadLatentAttention"`
	SkipLoadingWeights bool                       `koanf:"skip_loading_weights"`
	FreeMemRatio       float64                    `koanf:"free_mem_ratio"       validate:"gte=0,lte=1"`
	SimpleShardOnly    bool                       `koanf:"simple_shard_only"`
	AttnBackend        AutoDeployAttentionBackend `koanf:"attn_backend"         validate:"oneof=flashinfer triton"`
	AttnPageSize       int                        `koanf:"attn_page_size"       validate:"gte=0"`
	CudaGraphConfig    *CudaGraphConfig           `koanf:"cuda_graph_config"    validate:"omitempty"`
}

func defaultAutoDeployArgs() *AutoDeployArgs {
	registry := registryFor(variantAutoDeploy)
	return &AutoDeployArgs{
		BaseArgs:     buildBaseArgs(registry),
		ModelFactory: ModelFactory(getString(registry, "model_factory")),
		MLABackend:   getString(registry, "mla_backend"),
		FreeMemRatio: getFloat(registry, "free_mem_ratio"),
		AttnBackend:  AutoDeployAttentionBackend(getString(registry, "attn_backend")),
		AttnPageSize: getInt(registry, "attn_page_size"),
	}
}

// NewAutoDeployArgs builds, validates, and finalizes a restricted-backend
// aggregate from a model reference and optional keyword overrides.
func NewAutoDeployArgs(model string, overrides map[string]any) (*AutoDeployArgs, error) {
	raw, err := Merge(map[string]any{"model": model}, overrides)
	if err != nil {
		return nil, err
	}
	return NewAutoDeployArgsFromMap(raw)
}

// NewAutoDeployArgsFromMap runs the full pipeline on a merged mapping.
func NewAutoDeployArgsFromMap(raw map[string]any) (*AutoDeployArgs, error) {
	defaults, err := structToMap(defaultAutoDeployArgs())
	if err != nil {
		return nil, err
	}
	merged, err := UpdateArgsWithOverlay(defaults, raw)
	if err != nil {
		return nil, err
	}
	a := defaultAutoDeployArgs()
	a.seedOptionalConfigs(merged)
	if _, ok := mapValue(merged, "cuda_graph_config"); ok && a.CudaGraphConfig == nil {
		a.CudaGraphConfig = NewCudaGraphConfig()
	}
	if err := decodeStrict(merged, a); err != nil {
		return nil, err
	}
	if a.Backend == "" {
		a.Backend = BackendAutoDeploy
	}
	if err := runPipeline(&a.state, a.validate, a.derivedPasses()); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *AutoDeployArgs) validate() error {
	if err := validateStruct(a); err != nil {
		return err
	}
	return a.validateParallelRestrictions()
}

// validateParallelRestrictions rejects any multi-dimensional parallelism
// field set away from its default; world_size itself is unrestricted.
func (a *AutoDeployArgs) validateParallelRestrictions() error {
	var offending []string
	if a.TensorParallelSize != 1 {
		offending = append(offending, "tensor_parallel_size")
	}
	if a.PipelineParallelSize != 1 {
		offending = append(offending, "pipeline_parallel_size")
	}
	if a.ContextParallelSize != 1 {
		offending = append(offending, "context_parallel_size")
	}
	if a.MoeClusterParallelSize != 1 {
		offending = append(offending, "moe_cluster_parallel_size")
	}
	if a.MoeTensorParallelSize != 1 {
		offending = append(offending, "moe_tensor_parallel_size")
	}
	if a.MoeExpertParallelSize != 1 {
		offending = append(offending, "moe_expert_parallel_size")
	}
	if a.EnableAttentionDP {
		offending = append(offending, "enable_attention_dp")
	}
	if len(a.CPConfig) > 0 {
		offending = append(offending, "cp_config")
	}
	if len(offending) == 0 {
		return nil
	}
	return &CrossFieldConsistencyError{
		Fields: offending,
		Reason: "autodeploy supports parallelization only via the world_size argument",
	}
}

func (a *AutoDeployArgs) derivedPasses() []derivedPass {
	return []derivedPass{
		{name: "attention page size", apply: func() error {
			return resolveAttentionPageSize(
				&a.AttnPageSize, a.AttnBackend.Paged(), autoDeployPagedAttentionPageSize, a.MaxSeqLen,
			)
		}},
		{name: "cuda graph batch sizes", apply: func() error {
			return resolveCudaGraphBuckets(a.CudaGraphConfig)
		}},
	}
}

// BackendConfig returns the aggregate itself; bootstrap code treats the
// aggregate as its own backend configuration view.
func (a *AutoDeployArgs) BackendConfig() *AutoDeployArgs {
	return a
}

// AsMap exports the full aggregate as a nested mapping.
func (a *AutoDeployArgs) AsMap() (map[string]any, error) {
	return structToMap(a)
}

// Set assigns one declared field by dotted path.
func (a *AutoDeployArgs) Set(path string, value any) error {
	return setField(a, registryFor(variantAutoDeploy), a.state, path, value)
}

// Equal reports observable equality across all fields.
func (a *AutoDeployArgs) Equal(other *AutoDeployArgs) bool {
	return reflect.DeepEqual(a, other)
}
