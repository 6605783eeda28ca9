package config

import (
	"github.com/mohae/deepcopy"
)

// BuildConfigKey is the canonical atomic-replace key: an embedded build
// specification is always substituted wholesale, never field-merged.
const BuildConfigKey = "build_config"

// deprecatedKeys are recognized-but-removed legacy overlay keys. They are
// rejected with guidance instead of being merged, so stale artifacts cannot
// resurrect removed fields.
var deprecatedKeys = map[string]string{
	"pytorch_backend_config": "its fields moved to the top level of the runtime arguments",
	"auto_parallel_config":   "auto parallelism is now configured through the parallel size fields",
	"decoding_config":        "use speculative_config instead",
}

// Merge deep-merges overlay onto base and returns a fresh mapping; neither
// input is modified. For each overlay key, when both sides hold nested
// mappings and the key is not in replaceKeys the merge recurses; otherwise
// the overlay value replaces the base value wholesale. Recognized legacy
// top-level keys fail with DeprecatedKeyError. Merge performs no type
// validation; that happens when an aggregate is constructed from the result.
func Merge(base, overlay map[string]any, replaceKeys ...string) (map[string]any, error) {
	for key, guidance := range deprecatedKeys {
		if _, ok := overlay[key]; ok {
			return nil, &DeprecatedKeyError{Key: key, Guidance: guidance}
		}
	}
	replace := make(map[string]struct{}, len(replaceKeys))
	for _, key := range replaceKeys {
		replace[key] = struct{}{}
	}
	merged, ok := deepcopy.Copy(base).(map[string]any)
	if !ok || merged == nil {
		merged = map[string]any{}
	}
	mergeInto(merged, overlay, replace)
	return merged, nil
}

func mergeInto(dst, overlay map[string]any, replace map[string]struct{}) {
	for key, value := range overlay {
		overlayMap, overlayIsMap := asStringMap(value)
		baseMap, baseIsMap := asStringMap(dst[key])
		if _, atomic := replace[key]; !atomic && overlayIsMap && baseIsMap {
			// Nested keys keep the replace semantics only at the level the
			// caller named them, matching how the build specification is
			// addressed as a top-level block.
			mergeInto(baseMap, overlayMap, replace)
			dst[key] = baseMap
			continue
		}
		copied := deepcopy.Copy(value)
		dst[key] = copied
	}
}

// asStringMap normalizes the two nested-mapping shapes YAML decoders
// produce. A typed-nil mapping is not a mapping: recursing into one would
// mean writing into a nil map, so callers must replace it wholesale.
func asStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, m != nil
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			key, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[key] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// UpdateArgsWithOverlay merges an untyped overlay (YAML file content, legacy
// artifacts) onto a serialized argument mapping. The build specification is
// always replaced atomically; callers may name further atomic keys.
func UpdateArgsWithOverlay(args, overlay map[string]any, replaceKeys ...string) (map[string]any, error) {
	keys := append([]string{BuildConfigKey}, replaceKeys...)
	return Merge(args, overlay, keys...)
}
