package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatCents(t *testing.T) {
	tests := []struct {
		name  string
		cents int64
		want  string
	}{
		{name: "zero", cents: 0, want: "$0.00"},
		{name: "positive", cents: 24500, want: "$245.00"},
		{name: "sub-dollar", cents: 98, want: "$0.98"},
		{name: "negative", cents: -105, want: "-$1.05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatCents(tt.cents))
		})
	}
}

func TestCentsToDollars(t *testing.T) {
	d := CentsToDollars(12345)
	assert.Equal(t, "123.45", d.String())
}
