package config

import (
	"reflect"
)

// Backend selector values recorded on finalized aggregates.
const (
	BackendPyTorch    = "pytorch"
	BackendTensorRT   = "tensorrt"
	BackendAutoDeploy = "_autodeploy"
)

// TorchAttentionBackend selects the attention kernel for the runtime-oriented
// backend.
type TorchAttentionBackend string

const (
	AttentionBackendTRTLLM     TorchAttentionBackend = "TRTLLM"
	AttentionBackendFlashInfer TorchAttentionBackend = "FLASHINFER"
	AttentionBackendVanilla    TorchAttentionBackend = "VANILLA"
)

// Paged reports whether the backend uses paged attention. Vanilla attention
// runs over the whole sequence.
func (b TorchAttentionBackend) Paged() bool {
	switch b {
	case AttentionBackendTRTLLM, AttentionBackendFlashInfer:
		return true
	default:
		return false
	}
}

// TorchArgs is the runtime-oriented aggregate: it carries no build
// specification and sizes everything at load time.
type TorchArgs struct {
	BaseArgs `koanf:",squash,flatten"`

	AttnBackend     TorchAttentionBackend `koanf:"attn_backend"      validate:"oneof=TRTLLM FLASHINFER VANILLA"`
	AttnPageSize    int                   `koanf:"attn_page_size"    validate:"gte=0"`
	CudaGraphConfig *CudaGraphConfig      `koanf:"cuda_graph_config" validate:"omitempty"`
}

func defaultTorchArgs() *TorchArgs {
	registry := registryFor(variantTorch)
	return &TorchArgs{
		BaseArgs:     buildBaseArgs(registry),
		AttnBackend:  TorchAttentionBackend(getString(registry, "attn_backend")),
		AttnPageSize: getInt(registry, "attn_page_size"),
	}
}

// NewTorchArgs builds, validates, and finalizes a runtime-oriented aggregate
// from a model reference and optional keyword overrides.
func NewTorchArgs(model string, overrides map[string]any) (*TorchArgs, error) {
	raw, err := Merge(map[string]any{"model": model}, overrides)
	if err != nil {
		return nil, err
	}
	return NewTorchArgsFromMap(raw)
}

// NewTorchArgsFromMap runs the full pipeline on a merged mapping: layer onto
// registry defaults, validate, resolve derived fields, finalize.
func NewTorchArgsFromMap(raw map[string]any) (*TorchArgs, error) {
	defaults, err := structToMap(defaultTorchArgs())
	if err != nil {
		return nil, err
	}
	merged, err := UpdateArgsWithOverlay(defaults, raw)
	if err != nil {
		return nil, err
	}
	a := defaultTorchArgs()
	a.seedOptionalConfigs(merged)
	if _, ok := mapValue(merged, "cuda_graph_config"); ok && a.CudaGraphConfig == nil {
		a.CudaGraphConfig = NewCudaGraphConfig()
	}
	if err := decodeStrict(merged, a); err != nil {
		return nil, err
	}
	if a.Backend == "" {
		a.Backend = BackendPyTorch
	}
	if err := runPipeline(&a.state, a.validate, a.derivedPasses()); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *TorchArgs) validate() error {
	return validateStruct(a)
}

func (a *TorchArgs) derivedPasses() []derivedPass {
	return []derivedPass{
		{name: "attention page size", apply: func() error {
			return resolveAttentionPageSize(
				&a.AttnPageSize, a.AttnBackend.Paged(), torchPagedAttentionPageSize, a.MaxSeqLen,
			)
		}},
		{name: "cuda graph batch sizes", apply: func() error {
			return resolveCudaGraphBuckets(a.CudaGraphConfig)
		}},
	}
}

// BackendConfig returns the aggregate itself; engine bootstrap expects a
// backend configuration view.
func (a *TorchArgs) BackendConfig() *TorchArgs {
	return a
}

// AsMap exports the full aggregate as a nested mapping suitable for
// reconstructing an observably equal aggregate.
func (a *TorchArgs) AsMap() (map[string]any, error) {
	return structToMap(a)
}

// Set assigns one declared field by dotted path. Undeclared paths fail with
// UnknownFieldError; finalized aggregates reject every assignment.
func (a *TorchArgs) Set(path string, value any) error {
	return setField(a, registryFor(variantTorch), a.state, path, value)
}

// Equal reports observable equality across all fields, nested value objects
// included.
func (a *TorchArgs) Equal(other *TorchArgs) bool {
	return reflect.DeepEqual(a, other)
}
