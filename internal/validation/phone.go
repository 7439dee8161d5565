// Package validation содержит функции валидации и нормализации входных данных.
package validation

import (
	"strings"
	"unicode"
)

// NormalizePhone приводит номер WhatsApp к ключу идентичности: остаются только цифры.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, ch := range raw {
		if unicode.IsDigit(ch) {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// IsValidPin проверяет формат PIN админ-панели: минимум четыре символа, только цифры.
func IsValidPin(pin string) bool {
	if len(pin) < 4 {
		return false
	}

	for _, ch := range pin {
		if !unicode.IsDigit(ch) {
			return false
		}
	}

	return true
}
