package service

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// NormalizePhone разбирает номер относительно региона по умолчанию и
// возвращает его в E.164. Для региона PY "0981 234567" даёт "+595981234567".
func NormalizePhone(raw, defaultRegion string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidPhone
	}

	num, err := phonenumbers.Parse(raw, strings.ToUpper(defaultRegion))
	if err != nil {
		return "", ErrInvalidPhone
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
