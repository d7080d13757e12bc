// Package version compares dotted-numeric OS version strings.
package version

import (
	"strconv"
	"strings"
)

// Ordering is the result of comparing two version strings.
type Ordering int

const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
)

// String returns a human-readable name for the ordering.
func (o Ordering) String() string {
	switch o {
	case Less:
		return "less"
	case Greater:
		return "greater"
	default:
		return "equal"
	}
}

// components is the number of dotted components considered significant.
// macOS versions are at most major.minor.patch; anything beyond the third
// component is ignored. The truncation is deliberate and documented here
// rather than hidden: "15.3.0.1" compares as "15.3.0".
const components = 3

// Compare compares two dotted-numeric version strings component-wise,
// most significant first. Missing components are treated as zero, so
// "15.3" and "15.3.0" are Equal. Non-numeric components also compare
// as zero.
func Compare(a, b string) Ordering {
	for i := 0; i < components; i++ {
		av := component(a, i)
		bv := component(b, i)
		if av < bv {
			return Less
		}
		if av > bv {
			return Greater
		}
	}
	return Equal
}

// IsOutdated reports whether current is strictly older than latest.
func IsOutdated(current, latest string) bool {
	return Compare(current, latest) == Less
}

// component extracts the i-th dotted component of v as an integer
// without splitting the whole string up front.
func component(v string, i int) int {
	for ; i > 0; i-- {
		idx := strings.IndexByte(v, '.')
		if idx < 0 {
			return 0
		}
		v = v[idx+1:]
	}
	if idx := strings.IndexByte(v, '.'); idx >= 0 {
		v = v[:idx]
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
