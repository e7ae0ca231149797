// Package textutil checks that file content can be opened as a document.
package textutil

import (
	"bytes"
	"errors"
	"unicode/utf8"
)

// BinarySniffLength is the number of leading bytes scanned for a NUL byte.
const BinarySniffLength = 8000

// Errors returned by CheckText.
var (
	ErrBinary      = errors.New("content is binary")
	ErrInvalidUTF8 = errors.New("content is not valid UTF-8")
)

// IsBinary reports whether data has a NUL byte within its first
// BinarySniffLength bytes.
func IsBinary(data []byte) bool {
	sniff := data
	if len(sniff) > BinarySniffLength {
		sniff = sniff[:BinarySniffLength]
	}

	return bytes.IndexByte(sniff, 0) >= 0
}

// CheckText returns ErrBinary or ErrInvalidUTF8 when data cannot be edited
// as text.
func CheckText(data []byte) error {
	if IsBinary(data) {
		return ErrBinary
	}

	if !utf8.Valid(data) {
		return ErrInvalidUTF8
	}

	return nil
}

// CountLines returns the number of lines in data. A final line without a
// newline counts; empty data has none.
func CountLines(data []byte) int {
	if len(data) == 0 {
		return 0
	}

	lines := bytes.Count(data, []byte{'\n'})
	if data[len(data)-1] != '\n' {
		lines++
	}

	return lines
}
