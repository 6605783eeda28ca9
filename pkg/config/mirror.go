package config

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"unicode"

	"github.com/modelserve/modelserve/internal/executor"
)

// The mirror keeps the value-object field sets and defaults synchronized
// with the peer schema the execution engine owns. Conversions are exhaustive
// explicit copies: a field present on one side and absent on the other fails
// loudly instead of being dropped, and the drift test compares every default
// across the two representations.

// ToExecutor converts the KV cache config to the engine's representation.
func (c *KVCacheConfig) ToExecutor() (executor.KvCacheConfig, error) {
	if err := verifyFieldSets(c, executor.KvCacheConfig{}); err != nil {
		return executor.KvCacheConfig{}, err
	}
	return executor.KvCacheConfig{
		EnableBlockReuse:            c.EnableBlockReuse,
		MaxTokens:                   cloneIntPtr(c.MaxTokens),
		MaxAttentionWindow:          slices.Clone(c.MaxAttentionWindow),
		SinkTokenLength:             cloneIntPtr(c.SinkTokenLength),
		FreeGpuMemoryFraction:       cloneFloatPtr(c.FreeGPUMemoryFraction),
		HostCacheSize:               cloneIntPtr(c.HostCacheSize),
		OnboardBlocks:               c.OnboardBlocks,
		CrossKvCacheFraction:        cloneFloatPtr(c.CrossKVCacheFraction),
		SecondaryOffloadMinPriority: cloneIntPtr(c.SecondaryOffloadMinPriority),
		EventBufferMaxSize:          c.EventBufferMaxSize,
		EnablePartialReuse:          c.EnablePartialReuse,
		CopyOnPartialReuse:          c.CopyOnPartialReuse,
	}, nil
}

// ToExecutor converts the dynamic batch config to the engine's
// representation.
func (c *DynamicBatchConfig) ToExecutor() (executor.DynamicBatchConfig, error) {
	if err := verifyFieldSets(c, executor.DynamicBatchConfig{}); err != nil {
		return executor.DynamicBatchConfig{}, err
	}
	return executor.DynamicBatchConfig{
		EnableBatchSizeTuning:           c.EnableBatchSizeTuning,
		EnableMaxNumTokensTuning:        c.EnableMaxNumTokensTuning,
		DynamicBatchMovingAverageWindow: c.DynamicBatchMovingAverageWindow,
	}, nil
}

// ToExecutor converts the scheduler config, policies included, to the
// engine's representation.
func (c *SchedulerConfig) ToExecutor() (executor.SchedulerConfig, error) {
	if err := verifyFieldSets(c, executor.SchedulerConfig{}); err != nil {
		return executor.SchedulerConfig{}, err
	}
	capacity, err := c.CapacitySchedulerPolicy.toExecutor()
	if err != nil {
		return executor.SchedulerConfig{}, err
	}
	chunking, err := c.ContextChunkingPolicy.toExecutor()
	if err != nil {
		return executor.SchedulerConfig{}, err
	}
	out := executor.SchedulerConfig{
		CapacitySchedulerPolicy: capacity,
		ContextChunkingPolicy:   chunking,
	}
	if c.DynamicBatchConfig != nil {
		dynamic, err := c.DynamicBatchConfig.ToExecutor()
		if err != nil {
			return executor.SchedulerConfig{}, err
		}
		out.DynamicBatchConfig = &dynamic
	}
	return out, nil
}

// ToExecutor converts the adapter cache config to the engine's
// representation.
func (c *PeftCacheConfig) ToExecutor() (executor.PeftCacheConfig, error) {
	if err := verifyFieldSets(c, executor.PeftCacheConfig{}); err != nil {
		return executor.PeftCacheConfig{}, err
	}
	return executor.PeftCacheConfig{
		NumHostModuleLayer:     c.NumHostModuleLayer,
		NumDeviceModuleLayer:   c.NumDeviceModuleLayer,
		OptimalAdapterSize:     c.OptimalAdapterSize,
		MaxAdapterSize:         c.MaxAdapterSize,
		NumPutWorkers:          c.NumPutWorkers,
		NumEnsureWorkers:       c.NumEnsureWorkers,
		NumCopyStreams:         c.NumCopyStreams,
		MaxPagesPerBlockHost:   c.MaxPagesPerBlockHost,
		MaxPagesPerBlockDevice: c.MaxPagesPerBlockDevice,
		DeviceCachePercent:     cloneFloatPtr(c.DeviceCachePercent),
		HostCacheSize:          cloneIntPtr(c.HostCacheSize),
		LoraPrefetchDir:        c.LoraPrefetchDir,
	}, nil
}

func (p CapacitySchedulerPolicy) toExecutor() (executor.CapacitySchedulerPolicy, error) {
	switch p {
	case CapacityGuaranteedNoEvict:
		return executor.CapacityGuaranteedNoEvict, nil
	case CapacityMaxUtilization:
		return executor.CapacityMaxUtilization, nil
	case CapacityStaticBatch:
		return executor.CapacityStaticBatch, nil
	default:
		return "", &MirrorDriftError{Field: "capacity_scheduler_policy", Local: p, Peer: "no counterpart"}
	}
}

func (p ContextChunkingPolicy) toExecutor() (executor.ContextChunkingPolicy, error) {
	switch p {
	case ChunkingFirstComeFirstServed:
		return executor.ChunkingFirstComeFirstServed, nil
	case ChunkingEqualProgress:
		return executor.ChunkingEqualProgress, nil
	default:
		return "", &MirrorDriftError{Field: "context_chunking_policy", Local: p, Peer: "no counterpart"}
	}
}

// PeerFieldNames enumerates the peer struct's field names in snake case,
// declaration order preserved.
func PeerFieldNames(peer any) []string {
	t := reflect.TypeOf(peer)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	names := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			names = append(names, camelToSnake(t.Field(i).Name))
		}
	}
	return names
}

// PeerEquals compares two peer-representation instances structurally. On
// mismatch it reports the specific field and both values.
func PeerEquals(a, b any) error {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Kind() == reflect.Ptr {
		va = va.Elem()
	}
	if vb.Kind() == reflect.Ptr {
		vb = vb.Elem()
	}
	if va.Type() != vb.Type() {
		return &MirrorDriftError{Field: "type", Local: va.Type().String(), Peer: vb.Type().String()}
	}
	for i := 0; i < va.NumField(); i++ {
		if !va.Type().Field(i).IsExported() {
			continue
		}
		fa, fb := va.Field(i).Interface(), vb.Field(i).Interface()
		if !reflect.DeepEqual(fa, fb) {
			return &MirrorDriftError{
				Field: camelToSnake(va.Type().Field(i).Name),
				Local: formatPeerValue(fa),
				Peer:  formatPeerValue(fb),
			}
		}
	}
	return nil
}

// VerifyDefaults checks that every mirrored value object's resolved default
// equals the peer schema's default, field by field. It backs the drift test
// and is cheap enough for a production preflight.
func VerifyDefaults() error {
	kv, err := NewKVCacheConfig().ToExecutor()
	if err != nil {
		return err
	}
	if err := PeerEquals(kv, executor.NewDefaultKvCacheConfig()); err != nil {
		return fmt.Errorf("kv_cache_config: %w", err)
	}
	sched, err := NewSchedulerConfig().ToExecutor()
	if err != nil {
		return err
	}
	if err := PeerEquals(sched, executor.NewDefaultSchedulerConfig()); err != nil {
		return fmt.Errorf("scheduler_config: %w", err)
	}
	dynamic, err := NewDynamicBatchConfig().ToExecutor()
	if err != nil {
		return err
	}
	if err := PeerEquals(dynamic, executor.NewDefaultDynamicBatchConfig()); err != nil {
		return fmt.Errorf("dynamic_batch_config: %w", err)
	}
	peft, err := NewPeftCacheConfig().ToExecutor()
	if err != nil {
		return err
	}
	if err := PeerEquals(peft, executor.NewDefaultPeftCacheConfig()); err != nil {
		return fmt.Errorf("peft_cache_config: %w", err)
	}
	return nil
}

// verifyFieldSets is the statically maintained correspondence check: the
// local koanf tag set and the peer field-name set must match exactly in both
// directions.
func verifyFieldSets(local any, peer any) error {
	localNames := localFieldNames(local)
	peerNames := PeerFieldNames(peer)
	localSet := make(map[string]struct{}, len(localNames))
	for _, name := range localNames {
		localSet[name] = struct{}{}
	}
	peerSet := make(map[string]struct{}, len(peerNames))
	for _, name := range peerNames {
		peerSet[name] = struct{}{}
	}
	for _, name := range localNames {
		if _, ok := peerSet[name]; !ok {
			return &MirrorDriftError{Field: name, Local: "declared", Peer: "absent"}
		}
	}
	for _, name := range peerNames {
		if _, ok := localSet[name]; !ok {
			return &MirrorDriftError{Field: name, Local: "absent", Peer: "declared"}
		}
	}
	return nil
}

// localFieldNames lists a value object's field names from its koanf tags.
func localFieldNames(v any) []string {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	names := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := strings.SplitN(field.Tag.Get("koanf"), ",", 2)[0]
		if tag == "" || tag == "-" {
			continue
		}
		names = append(names, tag)
	}
	return names
}

func camelToSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func formatPeerValue(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return "<unset>"
		}
		return rv.Elem().Interface()
	}
	return v
}

func cloneIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloatPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
