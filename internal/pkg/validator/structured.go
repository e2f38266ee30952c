package validator

import (
	"fmt"
	"strings"

	"github.com/futig/sla-consultant/internal/entity"
)

// ValidateStructuredInput checks submitted data against the active form.
// Required fields must be non-empty and option fields must use a known value.
// Keys the form does not declare are passed through.
func (v *Validator) ValidateStructuredInput(fields []entity.StructuredInputField, data map[string]any) error {
	var missing, invalid []string

	for _, f := range fields {
		value, ok := data[f.ID]
		if !ok || isEmpty(value) {
			if f.Required {
				missing = append(missing, fieldName(f))
			}
			continue
		}

		if f.Type.HasOptions() && len(f.Options) > 0 && !matchesOptions(f, value) {
			invalid = append(invalid, fieldName(f))
		}
	}

	switch {
	case len(missing) > 0:
		return fmt.Errorf("%w: missing required fields: %s", entity.ErrInvalidStructuredInput, strings.Join(missing, ", "))
	case len(invalid) > 0:
		return fmt.Errorf("%w: unknown option for: %s", entity.ErrInvalidStructuredInput, strings.Join(invalid, ", "))
	}
	return nil
}

func fieldName(f entity.StructuredInputField) string {
	if f.Label != "" {
		return f.Label
	}
	return f.ID
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	case bool:
		return !v
	}
	return false
}

func matchesOptions(f entity.StructuredInputField, value any) bool {
	allowed := make(map[string]struct{}, len(f.Options))
	for _, o := range f.Options {
		allowed[o.Value] = struct{}{}
	}

	check := func(v any) bool {
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		_, found := allowed[s]
		return found
	}

	switch v := value.(type) {
	case []any:
		if f.Type != entity.FieldTypeCheckbox {
			return false
		}
		for _, item := range v {
			if !check(item) {
				return false
			}
		}
		return true
	case []string:
		if f.Type != entity.FieldTypeCheckbox {
			return false
		}
		for _, item := range v {
			if !check(item) {
				return false
			}
		}
		return true
	default:
		return check(v)
	}
}
