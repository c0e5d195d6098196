package validation

import (
	"fmt"
	"regexp"
)

// JSONSchema defines the structure for input validation schemas.
type JSONSchema struct {
	Type                 string              `json:"type"`
	Properties           map[string]Property `json:"properties"`
	Required             []string            `json:"required,omitempty"`
	AdditionalProperties bool                `json:"additionalProperties,omitempty"`
}

type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Pattern     *string  `json:"pattern,omitempty"`
	MinLength   *int     `json:"minLength,omitempty"`
	MaxLength   *int     `json:"maxLength,omitempty"`
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidateInput validates input against a JSON schema with detailed
// per-field errors.
func ValidateInput(input map[string]interface{}, schema JSONSchema) *ValidationResult {
	errors := []ValidationError{}

	for _, requiredField := range schema.Required {
		if _, exists := input[requiredField]; !exists {
			errors = append(errors, ValidationError{
				Field:   requiredField,
				Message: "required field missing",
				Code:    "REQUIRED_FIELD_MISSING",
			})
		}
	}

	for fieldName, value := range input {
		prop, exists := schema.Properties[fieldName]
		if !exists {
			if !schema.AdditionalProperties {
				errors = append(errors, ValidationError{
					Field:   fieldName,
					Message: "field not allowed in schema",
					Code:    "EXTRA_FIELD",
				})
			}
			continue
		}

		if fieldErrors := validateField(fieldName, value, prop); len(fieldErrors) > 0 {
			errors = append(errors, fieldErrors...)
		}
	}

	return &ValidationResult{
		Valid:  len(errors) == 0,
		Errors: errors,
	}
}

func validateField(name string, value interface{}, prop Property) []ValidationError {
	errors := []ValidationError{}

	switch prop.Type {
	case "string":
		s, ok := value.(string)
		if !ok {
			return append(errors, ValidationError{
				Field:   name,
				Message: "expected string",
				Code:    "TYPE_MISMATCH",
			})
		}
		if prop.MinLength != nil && len(s) < *prop.MinLength {
			errors = append(errors, ValidationError{
				Field:   name,
				Message: fmt.Sprintf("shorter than minimum length %d", *prop.MinLength),
				Code:    "MIN_LENGTH",
			})
		}
		if prop.MaxLength != nil && len(s) > *prop.MaxLength {
			errors = append(errors, ValidationError{
				Field:   name,
				Message: fmt.Sprintf("longer than maximum length %d", *prop.MaxLength),
				Code:    "MAX_LENGTH",
			})
		}
		if prop.Pattern != nil {
			if matched, err := regexp.MatchString(*prop.Pattern, s); err != nil || !matched {
				errors = append(errors, ValidationError{
					Field:   name,
					Message: "does not match pattern",
					Code:    "PATTERN_MISMATCH",
				})
			}
		}
		if len(prop.Enum) > 0 {
			found := false
			for _, e := range prop.Enum {
				if e == s {
					found = true
					break
				}
			}
			if !found {
				errors = append(errors, ValidationError{
					Field:   name,
					Message: fmt.Sprintf("value %q not in enum", s),
					Code:    "ENUM_MISMATCH",
				})
			}
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			errors = append(errors, ValidationError{
				Field:   name,
				Message: "expected boolean",
				Code:    "TYPE_MISMATCH",
			})
		}
	case "number", "integer":
		switch value.(type) {
		case int, int32, int64, float32, float64:
		default:
			errors = append(errors, ValidationError{
				Field:   name,
				Message: "expected number",
				Code:    "TYPE_MISMATCH",
			})
		}
	}

	return errors
}
