package pipeline

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"clan-portal/backend/internal/apperror"
)

// maxBodyBytes bounds request bodies read by Validate.
const maxBodyBytes = 1 << 20

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator. Field names in errors are the json names.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// Validate decodes the JSON body into a T, validates it, and stores it for Body[T].
// Unknown fields are rejected. The first failing field is reported as 400.
func Validate[T any]() Step {
	return Step{Name: "validate", Run: func(_ http.ResponseWriter, r *http.Request) (*http.Request, error) {
		body := new(T)
		dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(body); err != nil {
			return nil, decodeError(err)
		}
		if err := Validator().Struct(body); err != nil {
			return nil, validationError(err)
		}
		return r.WithContext(withBody(r.Context(), body)), nil
	}}
}

// UUIDParam rejects requests whose route parameter name is not a UUID.
func UUIDParam(name string) Step {
	return Step{Name: "validate.uuid", Run: func(_ http.ResponseWriter, r *http.Request) (*http.Request, error) {
		if _, err := uuid.Parse(chi.URLParam(r, name)); err != nil {
			return nil, apperror.BadRequest(fmt.Sprintf("%q must be a valid GUID", name))
		}
		return r, nil
	}}
}

func decodeError(err error) error {
	if errors.Is(err, io.EOF) {
		return apperror.BadRequest("Request body is required")
	}
	if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return apperror.BadRequest(field + " is not allowed")
	}
	return apperror.Wrap(apperror.KindBadRequest, "Invalid JSON body", err)
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperror.Wrap(apperror.KindBadRequest, "Invalid request body", err)
	}
	return apperror.BadRequest(FieldMessage(verrs[0]))
}

// FieldMessage renders a validation failure as `"field" <reason>`.
func FieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	field = fmt.Sprintf("%q", field)
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "url", "http_url", "uri":
		return field + " must be a valid uri"
	case "uuid", "uuid4":
		return field + " must be a valid GUID"
	case "datetime":
		return field + " must be in ISO 8601 date format"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s length must be at least %s characters long", field, fe.Param())
		}
		return fmt.Sprintf("%s must contain at least %s items", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s length must be less than or equal to %s characters long", field, fe.Param())
		}
		return fmt.Sprintf("%s must contain less than or equal to %s items", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed on the %s rule", field, fe.Tag())
	}
}
