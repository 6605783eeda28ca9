package definition

import "reflect"

// Class partitions fields by when their value is allowed to change.
// Build-class fields are frozen inside a persisted artifact and cannot be
// overridden when loading one; runtime-class fields can.
type Class int

const (
	ClassRuntime Class = iota
	ClassBuild
)

// FieldDef describes one declared configuration field.
type FieldDef struct {
	Path    string       // dotted config path like "kv_cache_config.max_tokens"
	Default any          // default value; nil means unset
	Type    reflect.Type // declared type, for introspection and CLI help
	Class   Class        // runtime or build mutability class
	Help    string       // operator-facing description
}

// Registry holds the declared field set for one aggregate variant. It is the
// single source of truth for field names, defaults, and mutability.
type Registry struct {
	fields map[string]FieldDef
	order  []string
}

// NewRegistry creates an empty field registry.
func NewRegistry() *Registry {
	return &Registry{fields: make(map[string]FieldDef)}
}

// Register adds a field definition to the registry.
func (r *Registry) Register(field *FieldDef) {
	if _, exists := r.fields[field.Path]; !exists {
		r.order = append(r.order, field.Path)
	}
	r.fields[field.Path] = *field
}

// GetField returns a field definition by path.
func (r *Registry) GetField(path string) (FieldDef, bool) {
	field, exists := r.fields[path]
	return field, exists
}

// Has reports whether the path belongs to the declared schema.
func (r *Registry) Has(path string) bool {
	_, exists := r.fields[path]
	return exists
}

// Declares reports whether the path is a declared field or a container whose
// children are declared, so "kv_cache_config" resolves even though only its
// leaves carry definitions.
func (r *Registry) Declares(path string) bool {
	if r.Has(path) {
		return true
	}
	prefix := path + "."
	for registered := range r.fields {
		if len(registered) > len(prefix) && registered[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

// GetDefault returns the default value for a field path, or nil.
func (r *Registry) GetDefault(path string) any {
	if field, exists := r.fields[path]; exists {
		return field.Default
	}
	return nil
}

// Paths returns every declared path in registration order.
func (r *Registry) Paths() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ClassOf returns the mutability class for a path. Paths nested under a
// registered prefix inherit the prefix's class, so "build_config.max_seq_len"
// resolves even when only "build_config" carries a definition.
func (r *Registry) ClassOf(path string) (Class, bool) {
	if field, exists := r.fields[path]; exists {
		return field.Class, true
	}
	for prefix := parentPath(path); prefix != ""; prefix = parentPath(prefix) {
		if field, exists := r.fields[prefix]; exists {
			return field.Class, true
		}
	}
	return ClassRuntime, false
}

func parentPath(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[:i]
		}
	}
	return ""
}
