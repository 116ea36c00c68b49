package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

const (
	MinWorkers = 1
	MaxWorkers = 20
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their wire name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// Error lists every failed field as field -> message.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, msg := range e.Fields {
		parts = append(parts, f+": "+msg)
	}
	sort.Strings(parts)
	return "invalid input: " + strings.Join(parts, "; ")
}

// Struct validates v against its `validate` tags.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("cannot validate %T: %w", v, err)
	}
	out := &Error{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fe.Field()] = describe(fe)
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "eqfield":
		return "must match " + fe.Param()
	case "excludesall":
		return "contains forbidden characters"
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// ValidateWorkerCount bounds the concurrency of batch operations.
func ValidateWorkerCount(n int) error {
	if n < MinWorkers || n > MaxWorkers {
		return fmt.Errorf("worker count must be between %d and %d, got %d", MinWorkers, MaxWorkers, n)
	}
	return nil
}

// ValidateID checks an identifier that is interpolated into a URL path.
func ValidateID(field, id string) error {
	if err := validate.Var(id, "notblank,excludesall=/?#%"); err != nil {
		return &Error{Fields: map[string]string{field: "must be a non-empty identifier without / ? # or %"}}
	}
	return nil
}

// ValidateBggID checks a BoardGameGeek id.
func ValidateBggID(id int) error {
	if id <= 0 {
		return &Error{Fields: map[string]string{"bggId": fmt.Sprintf("must be a positive integer, got %d", id)}}
	}
	return nil
}
