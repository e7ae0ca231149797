package textutil

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBinary(t *testing.T) {
	t.Parallel()

	assert.False(t, IsBinary(nil))
	assert.False(t, IsBinary([]byte("hello world\n")))
	assert.True(t, IsBinary([]byte("hello\x00world")))
	assert.True(t, IsBinary([]byte("\x00start")))
}

func TestIsBinary_SniffWindow(t *testing.T) {
	t.Parallel()

	data := make([]byte, BinarySniffLength)
	data[BinarySniffLength-1] = 0x00
	assert.True(t, IsBinary(data))

	data = bytes.Repeat([]byte("a"), BinarySniffLength+100)
	data[BinarySniffLength+50] = 0x00
	assert.False(t, IsBinary(data), "NUL past the window is not seen")
}

func TestCheckText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "empty", data: nil},
		{name: "ascii", data: []byte("let x = 1\n")},
		{name: "multibyte", data: []byte("é 😀 中")},
		{name: "binary", data: []byte{'a', 0, 'b'}, want: ErrBinary},
		{name: "latin1", data: []byte{'c', 'a', 'f', 0xe9}, want: ErrInvalidUTF8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.ErrorIs(t, CheckText(tt.data), tt.want)
		})
	}
}

func TestCountLines(t *testing.T) {
	t.Parallel()

	tests := []struct {
		data string
		want int
	}{
		{data: "", want: 0},
		{data: "hello", want: 1},
		{data: "hello\n", want: 1},
		{data: "a\nb", want: 2},
		{data: "a\nb\n", want: 2},
		{data: "\n\n\n", want: 3},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CountLines([]byte(tt.data)), "%q", tt.data)
	}
}
