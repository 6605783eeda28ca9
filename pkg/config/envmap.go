package config

import (
	"reflect"
	"strings"
	"sync"

	"github.com/modelserve/modelserve/pkg/config/definition"
)

// EnvMapping binds one environment variable to a dotted configuration path.
type EnvMapping struct {
	EnvVar     string
	ConfigPath string
}

var (
	envMappingCache = map[definition.Variant][]EnvMapping{}
	envMappingMu    sync.Mutex
)

// GenerateEnvMappings derives the environment mappings for a variant from the
// aggregate's struct tags. Only fields carrying an env tag are mapped; the
// variable name is the tag value without any deployment prefix.
func GenerateEnvMappings(variant definition.Variant) []EnvMapping {
	envMappingMu.Lock()
	defer envMappingMu.Unlock()
	if cached, ok := envMappingCache[variant]; ok {
		return cached
	}
	var root reflect.Type
	switch variant {
	case variantEngine:
		root = reflect.TypeOf(EngineArgs{})
	case variantAutoDeploy:
		root = reflect.TypeOf(AutoDeployArgs{})
	default:
		root = reflect.TypeOf(TorchArgs{})
	}
	mappings := extractEnvMappings(root, "")
	envMappingCache[variant] = mappings
	return mappings
}

// extractEnvMappings recursively collects env mappings from struct fields.
// Squashed embeds contribute their fields at the parent's path level.
func extractEnvMappings(t reflect.Type, prefix string) []EnvMapping {
	var mappings []EnvMapping
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		koanfTag := field.Tag.Get("koanf")
		name := strings.SplitN(koanfTag, ",", 2)[0]
		if field.Anonymous && strings.Contains(koanfTag, "squash") {
			mappings = append(mappings, extractEnvMappings(field.Type, prefix)...)
			continue
		}
		if name == "" || name == "-" {
			continue
		}
		configPath := name
		if prefix != "" {
			configPath = prefix + "." + name
		}
		if envTag := field.Tag.Get("env"); envTag != "" && envTag != "-" {
			mappings = append(mappings, EnvMapping{EnvVar: envTag, ConfigPath: configPath})
		}
		fieldType := field.Type
		if fieldType.Kind() == reflect.Ptr {
			fieldType = fieldType.Elem()
		}
		if fieldType.Kind() == reflect.Struct {
			mappings = append(mappings, extractEnvMappings(fieldType, configPath)...)
		}
	}
	return mappings
}

// EnvVarForPath returns the environment variable mapped to a configuration
// path, if any.
func EnvVarForPath(variant definition.Variant, configPath string) (string, bool) {
	for _, m := range GenerateEnvMappings(variant) {
		if m.ConfigPath == configPath {
			return m.EnvVar, true
		}
	}
	return "", false
}
