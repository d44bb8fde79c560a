package catalog

import (
	"strings"

	"golang.org/x/text/width"
)

// NormalizeISBN は全角を半角に寄せ、ハイフンと空白を除く。
// 10桁（末尾 X 可）か13桁の数字でなければ false
func NormalizeISBN(s string) (string, bool) {
	s = width.Narrow.String(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '-', ' ', '\t':
			return -1
		case 'x':
			return 'X'
		}
		return r
	}, s)

	switch len(s) {
	case 10:
		if !allDigits(s[:9]) {
			return "", false
		}
		if last := s[9]; last != 'X' && (last < '0' || last > '9') {
			return "", false
		}
	case 13:
		if !allDigits(s) {
			return "", false
		}
	default:
		return "", false
	}
	return s, true
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
