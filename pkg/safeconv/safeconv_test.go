package safeconv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMustIntToUint32(t *testing.T) {
	t.Parallel()

	t.Run("normal_value", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, uint32(42), MustIntToUint32(42))
	})

	t.Run("bounds", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, uint32(0), MustIntToUint32(0))
		assert.Equal(t, uint32(math.MaxUint32), MustIntToUint32(math.MaxUint32))
	})

	t.Run("negative_panics", func(t *testing.T) {
		t.Parallel()

		assert.PanicsWithValue(t, "safeconv: int to uint32 out of bounds", func() {
			MustIntToUint32(-1)
		})
	})

	t.Run("overflow_panics", func(t *testing.T) {
		t.Parallel()

		assert.PanicsWithValue(t, "safeconv: int to uint32 out of bounds", func() {
			MustIntToUint32(math.MaxUint32 + 1)
		})
	})
}

func TestMustIntToUint64(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint64(1024), MustIntToUint64(1024))
	assert.Equal(t, uint64(math.MaxInt), MustIntToUint64(math.MaxInt))

	assert.PanicsWithValue(t, "safeconv: negative int to uint64 conversion", func() {
		MustIntToUint64(-3)
	})
}
