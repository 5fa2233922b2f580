package common

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct runs the struct tag rules and reports failures as ErrValidation.
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, strings.ToLower(fe.Field())+" ("+fe.Tag()+")")
			}
			return Validationf("invalid fields: %s", strings.Join(fields, ", "))
		}
		return Validationf("%v", err)
	}
	return nil
}

// ValidateUserID checks an opaque user identifier is present.
func ValidateUserID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return Validationf("%s is required", field)
	}
	if len(id) > 64 {
		return Validationf("%s is too long", field)
	}
	return nil
}
