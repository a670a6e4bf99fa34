package repo

import (
	"time"

	"github.com/google/uuid"
)

// nullString возвращает nil для пустой строки (NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullUUID возвращает nil для nil указателя (NULL в БД).
func nullUUID(id *uuid.UUID) *uuid.UUID {
	return id
}

// nullInt возвращает nil для нулевого значения (NULL в БД).
func nullInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

// nullTime возвращает nil для нулевого времени (NULL в БД).
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// nullStrings возвращает nil для пустого среза (NULL в БД).
func nullStrings(ss []string) []string {
	if len(ss) == 0 {
		return nil
	}
	return ss
}
