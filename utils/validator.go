package utils

import (
	"fmt"
	"strings"

	"github.com/badoux/checkmail"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct validates request payloads tagged with validator rules.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	// Format validation errors
	var errs []string
	for _, err := range err.(validator.ValidationErrors) {
		field := strings.ToLower(err.Field())
		tag := err.Tag()
		param := err.Param()

		switch tag {
		case "required":
			errs = append(errs, field+" is required")
		case "min":
			errs = append(errs, field+" must be at least "+param+" characters")
		case "max":
			errs = append(errs, field+" must be at most "+param+" characters")
		case "email":
			errs = append(errs, field+" must be a valid email")
		case "oneof":
			errs = append(errs, field+" must be one of "+param)
		default:
			errs = append(errs, field+" is invalid")
		}
	}

	return fmt.Errorf("%s", strings.Join(errs, ", "))
}

// ValidateEmailFormat checks RFC format without touching the network.
func ValidateEmailFormat(email string) error {
	return checkmail.ValidateFormat(email)
}
