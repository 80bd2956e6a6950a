// Package mojibake reverses the mis-encoding found in export documents, where
// UTF-8 byte sequences were captured as runs of single-byte codepoints.
package mojibake

import "unicode/utf8"

// Repair treats each character of s as a single raw byte and decodes the
// resulting byte sequence as UTF-8. Plain ASCII passes through unchanged. If
// the input contains codepoints above 0xFF, or the byte sequence is not valid
// UTF-8, the original string is returned as-is.
func Repair(s string) string {
	buf := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xFF {
			// Already real Unicode text, not mojibake.
			return s
		}
		buf = append(buf, byte(r))
	}
	if !utf8.Valid(buf) {
		return s
	}
	return string(buf)
}
