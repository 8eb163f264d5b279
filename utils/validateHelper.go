package utils

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.SetTagName("binding")
	})
	return validate
}

// ValidateStruct checks the `binding` tags of input outside of gin (CLI tools, imports).
// Failures come back as *ValidationError.
func ValidateStruct(input any) error {
	if err := getValidator().Struct(input); err != nil {
		if fields := ProcessValidationErrors(err); fields != nil {
			return &ValidationError{Fields: fields}
		}
		return err
	}
	return nil
}
