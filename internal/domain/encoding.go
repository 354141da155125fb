package domain

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// mojibakeMarkers are characters that betray UTF-8 text that was decoded as
// a single-byte encoding somewhere upstream ("Ã±" instead of "ñ").
const mojibakeMarkers = "ÃâÂÑñ"

// RepairEncoding undoes the common UTF-8-read-as-Latin-1 corruption seen in
// facility names and addresses. Text without marker characters is returned
// unchanged. A repair is only accepted when re-encoding round-trips to valid
// UTF-8; otherwise the original text is kept.
func RepairEncoding(s string) string {
	if s == "" || !strings.ContainsAny(s, mojibakeMarkers) {
		return s
	}

	if fixed, ok := reinterpret(s, charmap.ISO8859_1); ok {
		return fixed
	}
	if fixed, ok := reinterpret(s, charmap.Windows1252); ok {
		return fixed
	}
	return s
}

// reinterpret encodes s back to the given single-byte charset and decodes
// the resulting bytes as UTF-8.
func reinterpret(s string, cm *charmap.Charmap) (string, bool) {
	raw, err := cm.NewEncoder().String(s)
	if err != nil {
		return "", false
	}
	if !utf8.ValidString(raw) || raw == s {
		return "", false
	}
	// Reject repairs that still contain the replacement character.
	if strings.ContainsRune(raw, utf8.RuneError) {
		return "", false
	}
	return raw, true
}
