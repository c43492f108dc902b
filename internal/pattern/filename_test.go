package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spherical/page-canvas/internal/domain"
)

func TestParseFilename(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   domain.PageRange
		wantOK bool
		count  int
	}{
		{name: "twenty pages", input: "brochure_page18to37.pdf", want: domain.PageRange{Start: 18, End: 37}, wantOK: true, count: 20},
		{name: "small range", input: "deck_page5to12.pdf", want: domain.PageRange{Start: 5, End: 12}, wantOK: true, count: 8},
		{name: "with directory", input: "/tmp/in/scan_page1to1.pdf", want: domain.PageRange{Start: 1, End: 1}, wantOK: true, count: 1},
		{name: "reversed kept as written", input: "x_page9to3.pdf", want: domain.PageRange{Start: 9, End: 3}, wantOK: true, count: 0},
		{name: "no pattern", input: "document.pdf"},
		{name: "wrong extension", input: "deck_page5to12.PDF"},
		{name: "suffix after extension", input: "deck_page5to12.pdf.bak"},
		{name: "missing underscore", input: "deckpage5to12.pdf"},
		{name: "empty", input: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseFilename(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
			if tt.wantOK {
				assert.Equal(t, tt.count, got.Count())
			}
		})
	}
}

func TestParseFilename_Overflow(t *testing.T) {
	_, ok := ParseFilename("x_page99999999999999999999to1.pdf")
	assert.False(t, ok)
}

func TestRangeOrDefault(t *testing.T) {
	def := domain.PageRange{Start: 1, End: 1}
	assert.Equal(t, def, RangeOrDefault("untitled.pdf", def))
	assert.Equal(t, domain.PageRange{Start: 18, End: 37}, RangeOrDefault("a_page18to37.pdf", def))
}
