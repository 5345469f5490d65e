package validator

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/Abhiram-745/revision-genius-bot-sub002/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

const dateRangeTag = "daterange"

// trans is the singleton English translator for validation errors.
var trans ut.Translator

// Setup registers the validator with English translations on Gin's binding engine.
// Call once during application startup.
func Setup() {
	v, ok := binding.Validator.Engine().(*govalidator.Validate)
	if !ok {
		return
	}

	// Use JSON tag name for field names in error messages.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, trans)

	v.RegisterStructValidation(validateDateRange, model.GenerateTimetableRequest{})
	_ = v.RegisterTranslation(dateRangeTag, trans,
		func(ut ut.Translator) error {
			return ut.Add(dateRangeTag, "{0} must not be before start_date", true)
		},
		func(ut ut.Translator, fe govalidator.FieldError) string {
			t, _ := ut.T(dateRangeTag, fe.Field())
			return t
		},
	)
}

// validateDateRange rejects generation requests whose end_date precedes start_date.
// Unparseable dates are left to the field-level datetime rule.
func validateDateRange(sl govalidator.StructLevel) {
	req := sl.Current().Interface().(model.GenerateTimetableRequest)

	start, err := time.Parse(time.DateOnly, req.StartDate)
	if err != nil {
		return
	}
	end, err := time.Parse(time.DateOnly, req.EndDate)
	if err != nil {
		return
	}
	if end.Before(start) {
		sl.ReportError(req.EndDate, "end_date", "EndDate", dateRangeTag, "")
	}
}

// TranslateErrors takes a binding/validation error and returns a map of
// field name → human-readable error message. If the error is not a
// validation error, it returns a single-key map with "detail".
func TranslateErrors(err error) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			if trans != nil {
				fields[fe.Field()] = fe.Translate(trans)
			} else {
				fields[fe.Field()] = fe.Error()
			}
		}
		return fields
	}

	// Not a validation error (e.g., JSON syntax error).
	fields["detail"] = err.Error()
	return fields
}

// Bind binds and validates the request body into dst.
// Returns nil on success or a translated field error map on failure.
func Bind(c *gin.Context, dst interface{}) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}

// Struct validates an already-decoded value with the same rules used for
// request binding.
func Struct(dst interface{}) map[string]string {
	if err := binding.Validator.ValidateStruct(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}
