package maintenance

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ukydev/fleet-maintenance/internal/models"
	apperrors "github.com/ukydev/fleet-maintenance/pkg/errors"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterStructValidation(ruleIntervalValidation, models.MaintenanceRule{})
}

// ruleIntervalValidation enforces that the interval fields match the interval type.
func ruleIntervalValidation(sl validator.StructLevel) {
	rule := sl.Current().Interface().(models.MaintenanceRule)

	if rule.IntervalType.UsesMileage() && rule.IntervalMileage == nil {
		sl.ReportError(rule.IntervalMileage, "IntervalMileage", "interval_mileage", "required_for_interval", string(rule.IntervalType))
	}
	if rule.IntervalType.UsesTime() && rule.IntervalDays == nil {
		sl.ReportError(rule.IntervalDays, "IntervalDays", "interval_days", "required_for_interval", string(rule.IntervalType))
	}
}

// ValidateRule rejects rules that break their interval invariant or carry bad field values.
func ValidateRule(rule models.MaintenanceRule) error {
	err := validate.Struct(rule)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.Validation("invalid rule: %v", err)
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, describeFieldError(fe))
	}
	return apperrors.Validation("invalid rule: %s", strings.Join(messages, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := toSnake(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "required_for_interval":
		return fmt.Sprintf("%s is required when interval_type is %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "gt", "gte":
		return fmt.Sprintf("%s must be %s %s", field, map[string]string{"gt": ">", "gte": ">="}[fe.Tag()], fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ValidateVehicle checks registry fields before a vehicle is stored.
func ValidateVehicle(v models.Vehicle) error {
	if err := validate.Struct(v); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			messages := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				messages = append(messages, describeFieldError(fe))
			}
			return apperrors.Validation("invalid vehicle: %s", strings.Join(messages, "; "))
		}
		return apperrors.Validation("invalid vehicle: %v", err)
	}
	if v.CurrentMileage < v.RegistrationMileage {
		return apperrors.Validation("invalid vehicle: current_mileage %d is below registration_mileage %d", v.CurrentMileage, v.RegistrationMileage)
	}
	return nil
}
