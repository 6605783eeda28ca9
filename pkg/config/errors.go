package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrFinalized is returned when a caller attempts to mutate a finalized
// aggregate. Finalized configurations are immutable; export with AsMap and
// rebuild through the pipeline instead.
var ErrFinalized = errors.New("configuration is finalized and immutable")

// FieldConstraintError reports a single field violating its declared
// range, enum, or literal-set constraint.
type FieldConstraintError struct {
	Field      string
	Constraint string
	Value      any
}

func (e *FieldConstraintError) Error() string {
	return fmt.Sprintf("field %q violates constraint %q (got %v)", e.Field, e.Constraint, e.Value)
}

// CrossFieldConsistencyError reports mutually exclusive or backend-restricted
// fields co-occurring, or an explicit derived-field pair that disagrees.
type CrossFieldConsistencyError struct {
	Fields []string
	Reason string
}

func (e *CrossFieldConsistencyError) Error() string {
	return fmt.Sprintf("inconsistent fields [%s]: %s", strings.Join(e.Fields, ", "), e.Reason)
}

// UnknownFieldError reports a key outside the closed schema, whether it
// arrived at construction or through a later Set call.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown configuration field %q", e.Field)
}

// DeprecatedKeyError reports a recognized-but-removed legacy key found in an
// overlay. The key is rejected outright so stale artifacts cannot resurrect
// removed fields.
type DeprecatedKeyError struct {
	Key      string
	Guidance string
}

func (e *DeprecatedKeyError) Error() string {
	return fmt.Sprintf("overlay key %q has been removed: %s", e.Key, e.Guidance)
}

// MirrorDriftError reports a field-set or default-value mismatch between a
// configuration type and its peer schema in the execution engine.
type MirrorDriftError struct {
	Field string
	Local any
	Peer  any
}

func (e *MirrorDriftError) Error() string {
	return fmt.Sprintf("mirror drift on field %q: local=%v peer=%v", e.Field, e.Local, e.Peer)
}

// constraintError translates a go-playground/validator failure into the
// taxonomy. Only the first violation is reported; configuration errors are
// fatal either way.
func constraintError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	constraint := fe.Tag()
	if fe.Param() != "" {
		constraint += "=" + fe.Param()
	}
	return &FieldConstraintError{
		Field:      namespaceToPath(fe.Namespace()),
		Constraint: constraint,
		Value:      fe.Value(),
	}
}

// namespaceToPath strips the root struct name and the squashed embed segment
// from a validator namespace, leaving the dotted field path that overlay
// mappings use. Field names are already mapped to their koanf tags by the
// validator's tag-name function.
func namespaceToPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.TrimPrefix(ns, "BaseArgs.")
}
