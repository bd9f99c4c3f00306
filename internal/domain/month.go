package domain

import (
	"fmt"
	"time"
)

const monthLayout = "2006-01"

// MonthOf возвращает первые 7 символов ISO-даты.
func MonthOf(date string) string {
	if len(date) < 7 {
		return date
	}
	return date[:7]
}

// CurrentMonth возвращает текущий месяц в UTC.
func CurrentMonth(now time.Time) string {
	return now.UTC().Format(monthLayout)
}

// PreviousMonth возвращает месяц, предшествующий now.
func PreviousMonth(now time.Time) string {
	first := time.Date(now.UTC().Year(), now.UTC().Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, -1, 0).Format(monthLayout)
}

// ValidateMonth проверяет формат YYYY-MM.
func ValidateMonth(month string) error {
	if _, err := time.Parse(monthLayout, month); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidMonth, month)
	}
	return nil
}

// MonthBefore возвращает месяц, предшествующий month (YYYY-MM).
func MonthBefore(month string) (string, error) {
	t, err := time.Parse(monthLayout, month)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonth, month)
	}
	return t.AddDate(0, -1, 0).Format(monthLayout), nil
}
