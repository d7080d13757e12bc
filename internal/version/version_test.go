package version_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/patchpilot/patchpilot/internal/version"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want version.Ordering
	}{
		{"identical triples", "15.3.1", "15.3.1", version.Equal},
		{"two components normalized", "15.3", "15.3.0", version.Equal},
		{"major rollover", "14.9.9", "15.0.0", version.Less},
		{"minor beats patch", "15.1", "15.0.5", version.Greater},
		{"patch difference", "15.3.0", "15.3.1", version.Less},
		{"single component", "15", "15.0.0", version.Equal},
		{"fourth component ignored", "15.3.0.1", "15.3.0", version.Equal},
		{"non-numeric compares as zero", "15.x", "15.0", version.Equal},
		{"empty is zero", "", "0.0.0", version.Equal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, version.Compare(tt.a, tt.b))
		})
	}
}

func TestCompare_Symmetry(t *testing.T) {
	assert.Equal(t, version.Less, version.Compare("14.9.9", "15.0.0"))
	assert.Equal(t, version.Greater, version.Compare("15.0.0", "14.9.9"))
}

func TestIsOutdated(t *testing.T) {
	assert.True(t, version.IsOutdated("15.2.1", "15.3.0"))
	assert.False(t, version.IsOutdated("15.3.0", "15.3.0"))
	assert.False(t, version.IsOutdated("15.3.1", "15.3.0"))
}
