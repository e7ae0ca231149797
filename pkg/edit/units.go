package edit

import (
	"fmt"
	"unicode/utf16"
	"unicode/utf8"
)

// Units selects how line lengths and columns are measured.
type Units uint8

const (
	// UTF16 measures text in UTF-16 code units, the convention used by
	// browser-style editing widgets and the Language Server Protocol.
	UTF16 Units = iota
	// Bytes measures text in UTF-8 bytes, the convention tree-sitter's Go
	// binding uses for byte offsets and point columns.
	Bytes
	// Runes measures text in Unicode code points.
	Runes
)

// Len returns the length of s in u.
func (u Units) Len(s string) int {
	switch u {
	case Bytes:
		return len(s)
	case Runes:
		return utf8.RuneCountInString(s)
	default:
		n := 0

		for _, r := range s {
			n += utf16.RuneLen(r)
		}

		return n
	}
}

// Prefix returns the longest prefix of s whose length in u does not exceed n,
// and the length actually consumed. A column that splits a surrogate pair or
// a multi-byte sequence is rounded down to the preceding rune boundary.
func (u Units) Prefix(s string, n int) (string, int) {
	if u == Bytes {
		if n >= len(s) {
			return s, len(s)
		}

		cut := n
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}

		return s[:cut], cut
	}

	used := 0

	for i, r := range s {
		w := 1
		if u == UTF16 {
			w = utf16.RuneLen(r)
		}

		if used+w > n {
			return s[:i], used
		}

		used += w
	}

	return s, used
}

// String returns the unit name used in configuration and logs.
func (u Units) String() string {
	switch u {
	case UTF16:
		return "utf-16"
	case Bytes:
		return "bytes"
	case Runes:
		return "runes"
	default:
		return fmt.Sprintf("units(%d)", uint8(u))
	}
}

// ParseUnits maps a configuration name back to Units.
func ParseUnits(name string) (Units, error) {
	switch name {
	case "utf-16", "utf16":
		return UTF16, nil
	case "bytes", "utf-8", "utf8":
		return Bytes, nil
	case "runes":
		return Runes, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnits, name)
	}
}
