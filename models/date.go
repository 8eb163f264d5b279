package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mmdatafocus/closing_backend/utils"
)

// Date is a calendar date (UTC midnight) serialized as "2006-01-02".
// It unmarshals from both YYYY-MM-DD and YYYYMMDD.
type Date time.Time

func NewDate(t time.Time) Date {
	return Date(utils.DateOnly(t))
}

// ParseDate wraps utils.ParseCloseDate.
func ParseDate(value string) (Date, error) {
	t, err := utils.ParseCloseDate(value)
	if err != nil {
		return Date{}, err
	}
	return Date(t), nil
}

func (d Date) Time() time.Time {
	return time.Time(d)
}

func (d Date) IsZero() bool {
	return time.Time(d).IsZero()
}

func (d Date) String() string {
	return time.Time(d).Format(utils.HyphenatedDateLayout)
}

// Compact renders YYYYMMDD.
func (d Date) Compact() string {
	return time.Time(d).Format(utils.CompactDateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", utils.ErrorInvalidDate, string(b))
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Value() (driver.Value, error) {
	return utils.DateOnly(time.Time(d)), nil
}

func (d *Date) Scan(value interface{}) error {
	switch v := value.(type) {
	case time.Time:
		*d = NewDate(v)
		return nil
	case []byte:
		return d.scanString(string(v))
	case string:
		return d.scanString(v)
	case nil:
		*d = Date{}
		return nil
	}
	return fmt.Errorf("cannot scan %T into Date", value)
}

func (d *Date) scanString(s string) error {
	if len(s) >= 10 {
		s = s[:10]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
