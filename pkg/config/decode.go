package config

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/mohae/deepcopy"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// validatorInstance returns the shared validator, configured to report field
// names by their koanf tag so constraint errors speak the overlay vocabulary.
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := strings.SplitN(fld.Tag.Get("koanf"), ",", 2)[0]
			if tag == "" || tag == "-" {
				return fld.Name
			}
			return tag
		})
	})
	return validate
}

// decodeStrict decodes a mapping into out, failing with UnknownFieldError on
// any key the target schema does not declare. Weak typing is enabled so YAML
// scalars (ints as floats, strings as typed enums) decode cleanly.
func decodeStrict(input map[string]any, out any) error {
	md := &mapstructure.Metadata{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "koanf",
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      false,
		Metadata:         md,
		Squash:           true,
	})
	if err != nil {
		return fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := dec.Decode(input); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}
	if len(md.Unused) > 0 {
		return &UnknownFieldError{Field: md.Unused[0]}
	}
	return nil
}

// structToMap renders a tagged struct as a nested map[string]any, expanding
// nested value objects recursively. The result is deep-copied so callers can
// mutate it without aliasing the source.
func structToMap(v any) (map[string]any, error) {
	out := map[string]any{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "koanf",
		Result:  &out,
		Squash:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build encoder: %w", err)
	}
	if err := dec.Decode(v); err != nil {
		return nil, fmt.Errorf("failed to encode configuration: %w", err)
	}
	copied, ok := deepcopy.Copy(out).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("failed to copy configuration map")
	}
	return copied, nil
}

// isNilValue reports whether v is nil, including typed nils such as an unset
// pointer field or a nil map rendered into an `any`.
func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

// validateStruct runs tag validation and converts the first violation into a
// FieldConstraintError.
func validateStruct(v any) error {
	if err := validatorInstance().Struct(v); err != nil {
		return constraintError(err)
	}
	return nil
}
