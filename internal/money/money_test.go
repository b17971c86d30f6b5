package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentOf(t *testing.T) {
	cases := []struct {
		name  string
		cents int64
		pct   int
		want  int64
	}{
		{"twenty percent", 10000, 20, 2000},
		{"rounds half up", 1250, 10, 125},
		{"rounds fraction", 999, 15, 150},
		{"zero percent", 5000, 0, 0},
		{"negative percent", 5000, -5, 0},
		{"clamped above hundred", 5000, 150, 5000},
		{"zero amount", 0, 50, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, PercentOf(tc.cents, tc.pct))
		})
	}
}

func TestDiscounted(t *testing.T) {
	assert.Equal(t, int64(8000), Discounted(10000, 20))
	assert.Equal(t, int64(0), Discounted(10000, 100))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "123.45", Format(12345))
	assert.Equal(t, "0.05", Format(5))
	assert.Equal(t, "100.00", Format(10000))
}
