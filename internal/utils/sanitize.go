package utils

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// SanitizeFilename removes characters that could break headers, logs, or
// path handling. Path components are stripped, control and punctuation
// characters become underscores, and the result is capped at 255 bytes.
func SanitizeFilename(filename string) string {
	if filename == "" {
		return "download"
	}

	filename = filepath.Base(filename)

	var sanitized strings.Builder
	sanitized.Grow(len(filename))
	for _, r := range filename {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' || r == '.' {
			sanitized.WriteRune(r)
		} else {
			sanitized.WriteRune('_')
		}
	}

	result := strings.Trim(sanitized.String(), " .")
	if result == "" || strings.Trim(result, ".") == "" {
		return "download"
	}

	if len(result) > 255 {
		ext := filepath.Ext(result)
		if len(ext) > 0 && len(ext) < 20 {
			basename := result[:len(result)-len(ext)]
			if len(basename) > 255-len(ext) {
				basename = basename[:255-len(ext)]
			}
			result = basename + ext
		} else {
			result = result[:255]
		}
	}

	return result
}

// ContentDisposition builds an attachment header value for the given
// filename. Pure ASCII names use the plain quoted form; anything else gets
// the RFC 5987 filename* form so non-Latin names survive the trip.
func ContentDisposition(filename string) string {
	safe := SanitizeFilename(filename)
	if isASCII(safe) {
		escaped := strings.ReplaceAll(safe, `"`, `\"`)
		return fmt.Sprintf(`attachment; filename="%s"`, escaped)
	}
	return fmt.Sprintf("attachment; filename*=UTF-8''%s", rfc5987Encode(safe))
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return false
		}
	}
	return true
}

// rfc5987Encode percent-encodes everything outside the attr-char set.
func rfc5987Encode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == '!' || c == '#' || c == '$' || c == '&' || c == '+' ||
			c == '-' || c == '.' || c == '^' || c == '_' || c == '`' ||
			c == '|' || c == '~':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}
