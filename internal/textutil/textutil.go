// Package textutil 提供检索链路共用的语言识别与分句工具。
package textutil

import (
	"strings"
	"unicode"
)

// IsArabic 判断文本中是否包含任意阿拉伯文字符。
func IsArabic(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Arabic, r) {
			return true
		}
	}
	return false
}

// ContainsDigit 判断文本中是否包含十进制数字（含阿拉伯-印度数字）。
func ContainsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// Sentences 按句号切分文本，去掉首尾空白并丢弃空句。
func Sentences(text string) []string {
	parts := strings.Split(text, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Words 把文本切成词并去掉标点，保留字母与数字。
func Words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}
