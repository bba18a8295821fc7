// Package schema validates request bodies against declared shapes. A shape is
// a struct with validate tags; failures turn into taxonomy validation errors
// with one detail per violated field, in the order the shape declares them.
package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/redmonkez12/contacts-api/internal/apperror"
	"github.com/redmonkez12/contacts-api/internal/httputil"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields under their wire names, not Go names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Check validates v against its shape tags. On failure it returns a
// validation taxonomy error; the payload is never mutated.
func Check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		// Only happens when the shape itself is broken.
		return apperror.Server(err.Error())
	}

	details := make([]apperror.Detail, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, apperror.Detail{Message: messageFor(fe)})
	}
	return apperror.Validation(details...)
}

type bodyKey struct{}

// Validate builds a middleware that decodes the JSON request body into T,
// checks it against T's shape and stores the decoded value in the request
// context for the handler to pick up with Body.
func Validate[T any]() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body T
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				httputil.RespondError(w, r, apperror.ValidationMsg("Invalid JSON in request body"))
				return
			}
			if err := Check(body); err != nil {
				httputil.RespondError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), bodyKey{}, body)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Body returns the value decoded and validated by the Validate middleware.
// Calling it on a route without the middleware yields T's zero value.
func Body[T any](ctx context.Context) T {
	body, _ := ctx.Value(bodyKey{}).(T)
	return body
}

// messageFor renders a human-readable reason for one violated field.
func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%q is required", fe.Field())
	case "min":
		return fmt.Sprintf("%q length must be at least %s characters long", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%q length must be at most %s characters long", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%q must be a valid email", fe.Field())
	case "oneof":
		return fmt.Sprintf("%q must be one of [%s]", fe.Field(), strings.Join(strings.Fields(fe.Param()), ", "))
	case "excludesall":
		return fmt.Sprintf("%q must not contain the characters %q", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%q is invalid", fe.Field())
	}
}
