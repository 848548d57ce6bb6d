package handler

import (
	"encoding/base64"
	"strings"
	"unicode/utf16"
)

// decodeUTF7 : имена файлов в заголовках WOPI приходят в UTF-7 (RFC 2152).
// Вставка, которая не разбирается как UTF-16, остаётся как есть
func decodeUTF7(value string) string {
	if !strings.Contains(value, "+") {
		return value
	}

	var out strings.Builder
	for i := 0; i < len(value); i++ {
		if value[i] != '+' {
			out.WriteByte(value[i])
			continue
		}

		end := i + 1
		for end < len(value) && isBase64Char(value[end]) {
			end++
		}
		closed := end < len(value) && value[end] == '-'

		chunk := value[i+1 : end]
		switch decoded, ok := decodeUTF16Chunk(chunk); {
		case chunk == "":
			out.WriteByte('+')
		case ok:
			out.WriteString(decoded)
		default:
			out.WriteString(value[i:end])
			closed = false
		}

		i = end - 1
		if closed {
			i = end
		}
	}
	return out.String()
}

func decodeUTF16Chunk(chunk string) (string, bool) {
	raw, err := base64.RawStdEncoding.DecodeString(chunk)
	if err != nil || len(raw) == 0 || len(raw)%2 != 0 {
		return "", false
	}

	units := make([]uint16, 0, len(raw)/2)
	for j := 0; j < len(raw); j += 2 {
		units = append(units, uint16(raw[j])<<8|uint16(raw[j+1]))
	}
	return string(utf16.Decode(units)), true
}

func isBase64Char(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '+' || c == '/'
}
