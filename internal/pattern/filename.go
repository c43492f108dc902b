// Package pattern reads page ranges encoded in document filenames, such as
// "catalog_page18to37.pdf".
package pattern

import (
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/spherical/page-canvas/internal/domain"
)

var rangePattern = regexp.MustCompile(`_page(\d+)to(\d+)\.pdf$`)

// ParseFilename extracts the page range from name. Directory components are
// ignored. ok is false when the name carries no range; the returned range is
// not validated, so a reversed range comes back as written.
func ParseFilename(name string) (domain.PageRange, bool) {
	m := rangePattern.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return domain.PageRange{}, false
	}
	start, err := strconv.Atoi(m[1])
	if err != nil {
		return domain.PageRange{}, false
	}
	end, err := strconv.Atoi(m[2])
	if err != nil {
		return domain.PageRange{}, false
	}
	return domain.PageRange{Start: start, End: end}, true
}

// RangeOrDefault returns the range encoded in name, or def when there is none.
func RangeOrDefault(name string, def domain.PageRange) domain.PageRange {
	if r, ok := ParseFilename(name); ok {
		return r
	}
	return def
}
