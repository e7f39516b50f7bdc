package action

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

// Checker is implemented by input types with rules spanning several fields (e.g. "at least one of").
// Check runs after per-field decoding and constraint validation succeed.
type Checker interface {
	Check() []FieldViolation
}

// FieldSpec describes one declared input field; used for the entry point catalogue.
type FieldSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Constraints string `json:"constraints,omitempty"`
}

type schemaField struct {
	name     string
	index    []int
	typ      reflect.Type
	validate string
}

// schema is the declared shape of an entry point input, derived once from the input struct type.
type schema struct {
	typ    reflect.Type
	fields []schemaField
	byName map[string]struct{}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return fieldName(f)
	})
	return v
}

func fieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return strings.ToLower(f.Name)
	}
	return name
}

func compileSchema(t reflect.Type) (*schema, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("action: input type %s must be a struct", t)
	}
	s := &schema{typ: t, byName: make(map[string]struct{})}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := fieldName(f)
		if name == "" {
			continue
		}
		if _, dup := s.byName[name]; dup {
			return nil, fmt.Errorf("action: input type %s declares field %q twice", t, name)
		}
		s.byName[name] = struct{}{}
		s.fields = append(s.fields, schemaField{
			name:     name,
			index:    f.Index,
			typ:      f.Type,
			validate: f.Tag.Get("validate"),
		})
	}
	return s, nil
}

// decode builds a value of the schema type from input. Unknown keys, values of the wrong type and
// constraint failures are all collected into one ValidationError. A null value counts as absent.
func (s *schema) decode(input map[string]any) (reflect.Value, error) {
	out := reflect.New(s.typ).Elem()
	var vs []FieldViolation
	reported := make(map[string]bool)

	for key := range input {
		if _, ok := s.byName[key]; !ok {
			vs = append(vs, FieldViolation{Field: key, Description: "unknown field"})
			reported[key] = true
		}
	}

	for _, f := range s.fields {
		raw, ok := input[f.name]
		if !ok || raw == nil {
			continue
		}
		target := out.FieldByIndex(f.index)
		if err := decodeValue(raw, target.Addr().Interface()); err != nil {
			vs = append(vs, FieldViolation{Field: f.name, Description: "must be " + article(typeName(f.typ))})
			reported[f.name] = true
			target.Set(reflect.Zero(f.typ))
		}
	}

	if err := validate.Struct(out.Interface()); err != nil {
		var fes validator.ValidationErrors
		if !errors.As(err, &fes) {
			return out, err
		}
		for _, fe := range fes {
			name := fe.Field()
			if reported[name] {
				continue
			}
			vs = append(vs, FieldViolation{Field: name, Description: describe(fe)})
			reported[name] = true
		}
	}

	if len(vs) == 0 {
		if c, ok := out.Interface().(Checker); ok {
			vs = append(vs, c.Check()...)
		} else if c, ok := out.Addr().Interface().(Checker); ok {
			vs = append(vs, c.Check()...)
		}
	}

	if len(vs) > 0 {
		return out, newValidationError(vs)
	}
	return out, nil
}

func decodeValue(raw any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      target,
		TagName:     "mapstructure",
		ErrorUnused: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			integralNumberHook,
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// integralNumberHook rejects numbers with a fractional part for integer targets; wire numbers arrive as float64.
func integralNumberHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if f, ok := data.(float64); ok {
			if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
				return nil, fmt.Errorf("%v is not an integer", f)
			}
		}
	}
	return data, nil
}

var timeType = reflect.TypeOf(time.Time{})

func typeName(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == timeType {
		return "timestamp"
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return "object"
	}
}

func article(typ string) string {
	switch typ {
	case "integer", "array", "object":
		return "an " + typ
	case "timestamp":
		return "an RFC3339 timestamp"
	default:
		return "a " + typ
	}
}

func describe(fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	case "max":
		if isString {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "min":
		if isString {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	case "uuid", "uuid4":
		return "must be a UUID"
	case "email":
		return "must be a valid email address"
	default:
		return fmt.Sprintf("failed %q constraint", fe.Tag())
	}
}

func (s *schema) specs() []FieldSpec {
	out := make([]FieldSpec, 0, len(s.fields))
	for _, f := range s.fields {
		required := false
		for _, rule := range strings.Split(f.validate, ",") {
			if rule == "required" {
				required = true
			}
		}
		out = append(out, FieldSpec{
			Name:        f.name,
			Type:        typeName(f.typ),
			Required:    required,
			Constraints: f.validate,
		})
	}
	return out
}
