package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"campsite/pkg/config"
	apperrors "campsite/pkg/errors"
	"campsite/pkg/logger"
	"campsite/pkg/model"

	"cloud.google.com/go/civil"
	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Policy holds the campsite booking rules applied on top of the field
// checks. Dates are compared against today in Location.
type Policy struct {
	MaxStayDays      int
	MinLeadDays      int
	MaxAdvanceMonths int
	Location         *time.Location
}

func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		MaxStayDays:      cfg.MaxStayDays,
		MinLeadDays:      cfg.MinLeadDays,
		MaxAdvanceMonths: cfg.MaxAdvanceMonths,
		Location:         cfg.Location,
	}
}

type ReservationValidator struct {
	validate *validator.Validate
	policy   Policy
	logger   *logger.Logger
	now      func() time.Time
}

func NewReservationValidator(policy Policy, log *logger.Logger) *ReservationValidator {
	v := validator.New()

	// civil.Date is a struct, so "required" needs to see it as a scalar
	// that is empty when zero.
	v.RegisterCustomTypeFunc(civilDateValue, civil.Date{})

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	if policy.Location == nil {
		policy.Location = time.UTC
	}

	log.Info("Reservation validator initialized successfully",
		"max_stay_days", policy.MaxStayDays,
		"min_lead_days", policy.MinLeadDays,
		"max_advance_months", policy.MaxAdvanceMonths,
	)

	return &ReservationValidator{
		validate: v,
		policy:   policy,
		logger:   log,
		now:      time.Now,
	}
}

func civilDateValue(field reflect.Value) any {
	d, ok := field.Interface().(civil.Date)
	if !ok || d.IsZero() {
		return nil
	}
	return d.String()
}

// Validate checks a create request: contact fields plus the stay rules.
func (v *ReservationValidator) Validate(req *model.ReservationRequest) error {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	return v.validateStay(req.StartDate, req.EndDate)
}

// ValidateDates checks the new range of a modify request.
func (v *ReservationValidator) ValidateDates(req *model.ReservationDatesRequest) error {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	return v.validateStay(req.StartDate, req.EndDate)
}

func (v *ReservationValidator) validateStay(start, end civil.Date) error {
	if !start.IsValid() {
		return ValidationErrors{{Field: "start_date", Message: "start_date is not a valid calendar date"}}
	}
	if !end.IsValid() {
		return ValidationErrors{{Field: "end_date", Message: "end_date is not a valid calendar date"}}
	}

	if !end.After(start) {
		return ValidationErrors{{Field: "end_date", Message: "end_date must be after start_date"}}
	}

	var errs ValidationErrors

	if nights := end.DaysSince(start); nights > v.policy.MaxStayDays {
		errs = append(errs, ValidationError{
			Field:   "end_date",
			Message: fmt.Sprintf("the campsite can be reserved for at most %d day(s), requested %d", v.policy.MaxStayDays, nights),
		})
	}

	today := civil.DateOf(v.now().In(v.policy.Location))

	if earliest := today.AddDays(v.policy.MinLeadDays); start.Before(earliest) {
		errs = append(errs, ValidationError{
			Field:   "start_date",
			Message: fmt.Sprintf("reservations must be made at least %d day(s) ahead of arrival, earliest start_date is %s", v.policy.MinLeadDays, earliest),
		})
	}

	if limit := model.AddMonths(today, v.policy.MaxAdvanceMonths); !start.Before(limit) {
		errs = append(errs, ValidationError{
			Field:   "start_date",
			Message: fmt.Sprintf("reservations can be made up to %d month(s) in advance, start_date must be before %s", v.policy.MaxAdvanceMonths, limit),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (v *ReservationValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}

// ToAppError turns a validation result into the 422 response body. Errors
// that are not ValidationErrors are returned unchanged.
func ToAppError(err error) error {
	var validationErrs ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}
	return apperrors.Validation("Reservation request is invalid", map[string]any{
		"errors": []ValidationError(validationErrs),
	}).WithCause(err)
}
