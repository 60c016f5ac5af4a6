// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"cuadra/internal/models"
)

// DateLayout is the wire format of civil dates.
const DateLayout = "2006-01-02"

// Register registers all custom validators with the Gin binding engine.
// Field errors are reported under the field's JSON (or form) name.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(fieldName)
		_ = v.RegisterValidation("direction", validateDirection)
		_ = v.RegisterValidation("obligation_kind", validateObligationKind)
		_ = v.RegisterValidation("member_role", validateMemberRole)
		_ = v.RegisterValidation("ledger_source", validateLedgerSource)
		_ = v.RegisterValidation("payment_day", validatePaymentDay)
		_ = v.RegisterValidation("civil_date", validateCivilDate)
	}
}

func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form", "uri"} {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

func validateDirection(fl validator.FieldLevel) bool {
	switch models.Direction(fl.Field().String()) {
	case models.DirectionIncome, models.DirectionExpense:
		return true
	}
	return false
}

func validateObligationKind(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "recurring", "one_off":
		return true
	}
	return false
}

func validateMemberRole(fl validator.FieldLevel) bool {
	switch models.MemberRole(fl.Field().String()) {
	case models.MemberRoleAdmin, models.MemberRoleMember:
		return true
	}
	return false
}

func validateLedgerSource(fl validator.FieldLevel) bool {
	switch models.Source(fl.Field().String()) {
	case models.SourceRecurring, models.SourceOneOff:
		return true
	}
	return false
}

// validatePaymentDay accepts 1..31. Days past the end of a short month are
// clamped when instances are expanded, never at write time.
func validatePaymentDay(fl validator.FieldLevel) bool {
	day := fl.Field().Int()
	return day >= 1 && day <= 31
}

func validateCivilDate(fl validator.FieldLevel) bool {
	_, err := time.Parse(DateLayout, fl.Field().String())
	return err == nil
}
