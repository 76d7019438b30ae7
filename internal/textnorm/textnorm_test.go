package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		// U+FEE3 is meem initial form, U+FEAE is reh final form.
		{"presentation forms fold", "ﻣﺮ", "مر"},
		{"lam-alef ligature expands", "ﻻ", "لا"},
		{"spaces collapse", "العلم   نور", "العلم نور"},
		{"blank lines capped", "a\n\n\n\nb", "a\n\nb"},
		{"trimmed", "  نص \n", "نص"},
		{"fullwidth digits fold", "１２", "12"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestFragmentKeepsBoundarySpace(t *testing.T) {
	assert.Equal(t, " العلم ", Fragment(" العلم "))
	assert.Equal(t, "a b", Fragment("a    b"))
	assert.Equal(t, "لا ", Fragment("ﻻ "))
	assert.Equal(t, "", Fragment(""))
}

func TestNormalizeIdempotent(t *testing.T) {
	in := "ﻣﺮ    ﻻ\n\n\n\n"
	once := Normalize(in)
	assert.Equal(t, once, Normalize(once))
}
