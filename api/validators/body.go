package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/alera-fm/alera-backend/pkg/enums"
	pkgerrors "github.com/alera-fm/alera-backend/pkg/errors"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("release_type", func(fl validator.FieldLevel) bool {
		return enums.ReleaseType(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("release_status", func(fl validator.FieldLevel) bool {
		return enums.ReleaseStatus(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("admin_decision", func(fl validator.FieldLevel) bool {
		return enums.AdminDecision(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("feature", func(fl validator.FieldLevel) bool {
		return enums.Feature(fl.Field().String()).IsValid()
	})
	return v
}

// DecodeJSONBody decodes a single JSON object into dest, rejecting unknown fields,
// then applies its validate tags.
func DecodeJSONBody(r *http.Request, dest any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, body)
	}()
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return pkgerrors.New(pkgerrors.CodeValidation, "request body is required")
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").WithDetails(map[string]any{"error": err.Error()})
	}
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) *pkgerrors.Error {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email"
	case "url", "http_url":
		return "must be a valid URL"
	case "release_type", "release_status", "admin_decision", "feature":
		return fmt.Sprintf("is not a valid %s", strings.ReplaceAll(fe.Tag(), "_", " "))
	}
	return "is invalid"
}
