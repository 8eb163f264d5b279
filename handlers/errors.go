package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/closing_backend/config"
	"github.com/mmdatafocus/closing_backend/models"
	"github.com/mmdatafocus/closing_backend/utils"
)

// statusFor maps domain errors to HTTP statuses. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, utils.ErrorDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, utils.ErrorRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, utils.ErrorInvalidDate),
		errors.Is(err, utils.ErrorValidation),
		errors.Is(err, utils.ErrorInvalidCredentials):
		return http.StatusBadRequest
	case errors.Is(err, utils.ErrorUserDisabled), errors.Is(err, utils.ErrorTenantMismatch):
		return http.StatusForbidden
	case errors.Is(err, models.ErrorImportInProgress):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, funcName string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		config.LogError(config.GetLogger(), "handlers", funcName, c.Request.Method+" "+c.FullPath(), nil, err)
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}

	body := gin.H{"error": err.Error()}
	var ve *utils.ValidationError
	if errors.As(err, &ve) {
		body["fields"] = ve.Fields
	}
	c.JSON(status, body)
}

// bindError turns a gin binding failure into a domain error.
func bindError(err error) error {
	if errors.Is(err, utils.ErrorInvalidDate) {
		return err
	}
	if fields := utils.ProcessValidationErrors(err); fields != nil {
		return &utils.ValidationError{Fields: fields}
	}
	return &utils.ValidationError{Fields: map[string]string{"body": err.Error()}}
}
