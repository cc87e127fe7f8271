package core

import (
	"errors"
	"log/slog"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"leanpulse/internal/types"
)

// hhmmPattern matches a zero-padded 24h time of day.
var hhmmPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ValidationError describes one failed field.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult collects field errors and non-blocking warnings.
type ValidationResult struct {
	Errors   []ValidationError `json:"errors,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
}

// IsValid reports whether no errors were recorded. Warnings do not count.
func (r ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator wraps go-playground/validator with the domain tags:
//
//	hhmm        - "HH:MM" time of day
//	channel     - email, slack or teams
//	category    - a notification preference category
//	report_type - a report layout
//	frequency   - daily, weekly or monthly
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator and registers the custom tags. Field names
// in errors come from json tags.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "hhmm", func(fl validator.FieldLevel) bool {
		return hhmmPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "channel", func(fl validator.FieldLevel) bool {
		return types.ChannelType(fl.Field().String()).Valid()
	})
	mustRegister(v, "category", func(fl validator.FieldLevel) bool {
		return types.Category(fl.Field().String()).Valid()
	})
	mustRegister(v, "report_type", func(fl validator.FieldLevel) bool {
		return types.ReportType(fl.Field().String()).Valid()
	})
	mustRegister(v, "frequency", func(fl validator.FieldLevel) bool {
		return types.Frequency(fl.Field().String()).Valid()
	})

	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{validate: v, logger: logger}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic("core: register validation " + tag + ": " + err.Error())
	}
}

// ValidateStruct returns nil or a *types.AppError whose code matches the first
// failure. All failures are listed under details["validation_errors"].
func (v *Validator) ValidateStruct(s any) error {
	result := v.ValidateStructWithWarnings(s)
	if result.IsValid() {
		return nil
	}
	first := result.Errors[0]
	return types.NewAppErrorWithDetails(
		types.ErrorCode(first.Code),
		first.Message,
		nil,
		map[string]any{"validation_errors": result.Errors},
	)
}

// ValidateStructWithWarnings runs validation and returns every failure.
func (v *Validator) ValidateStructWithWarnings(s any) ValidationResult {
	var result ValidationResult

	err := v.validate.Struct(s)
	if err == nil {
		return result
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		v.logger.Error("validator misuse", "error", err)
		result.Errors = append(result.Errors, ValidationError{
			Field:   "",
			Code:    string(types.ErrCodeValidationMissingField),
			Message: "request could not be validated",
		})
		return result
	}

	for _, fe := range fieldErrs {
		result.Errors = append(result.Errors, toValidationError(fe))
	}
	return result
}

func toValidationError(fe validator.FieldError) ValidationError {
	field := fieldPath(fe)
	ve := ValidationError{Field: field}

	switch fe.Tag() {
	case "required", "required_if", "required_with":
		ve.Code = string(types.ErrCodeValidationMissingField)
		ve.Message = field + " is required"
	case "email":
		ve.Code = string(types.ErrCodeValidationInvalidEmail)
		ve.Message = field + " must be a valid email address"
	case "hhmm":
		ve.Code = string(types.ErrCodeValidationInvalidSchedule)
		ve.Message = field + " must be HH:MM"
	case "channel":
		ve.Code = string(types.ErrCodeValidationInvalidChannel)
		ve.Message = field + " must be one of email, slack, teams"
	case "category":
		ve.Code = string(types.ErrCodeValidationInvalidCategory)
		ve.Message = field + " is not a notification category"
	case "report_type":
		ve.Code = string(types.ErrCodeValidationInvalidReport)
		ve.Message = field + " is not a report type"
	case "frequency":
		ve.Code = string(types.ErrCodeValidationInvalidSchedule)
		ve.Message = field + " must be one of daily, weekly, monthly"
	case "min", "max":
		ve.Code = string(types.ErrCodeValidationInvalidFilter)
		ve.Message = field + " must satisfy " + fe.Tag() + "=" + fe.Param()
	case "oneof":
		ve.Code = string(types.ErrCodeValidationInvalidFilter)
		ve.Message = field + " must be one of: " + fe.Param()
	default:
		ve.Code = string(types.ErrCodeValidationInvalidFilter)
		ve.Message = field + " failed " + fe.Tag() + " validation"
	}
	return ve
}

// fieldPath strips the top-level struct name from the namespace, so
// "createScheduleRequest.recipients[0]" becomes "recipients[0]".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}
