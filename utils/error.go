package utils

import (
	"errors"
	"sort"
	"strings"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var (
	ErrorRecordNotFound = errors.New("record not found")
	ErrorDuplicateKey   = errors.New("duplicate key")
	ErrorInvalidDate    = errors.New("invalid date")
	ErrorValidation     = errors.New("validation failed")

	ErrorInvalidCredentials = errors.New("invalid username or password")
	ErrorUserDisabled       = errors.New("user is disabled")
	ErrorTenantMismatch     = errors.New("tenant not allowed")
)

const mysqlErrDuplicateEntry = 1062

// ValidationError carries per-field failures (field name -> rule) and matches ErrorValidation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrorValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrorValidation.Error() + " (" + strings.Join(parts, ", ") + ")"
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrorValidation
}

func NewValidationError(field string, rule string) error {
	return &ValidationError{Fields: map[string]string{field: rule}}
}

// IsDuplicateKeyError reports whether err is a unique/primary key violation.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlErrDuplicateEntry
	}
	return false
}
