package advertisement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(v int64) *int64 { return &v }

func TestCapReached(t *testing.T) {
	tests := []struct {
		name string
		ad   Advertisement
		want bool
	}{
		{"no caps", Advertisement{ViewCount: 1000, ClickCount: 1000}, false},
		{"below view cap", Advertisement{ViewCount: 1, MaxViews: ptr(2)}, false},
		{"at view cap", Advertisement{ViewCount: 2, MaxViews: ptr(2)}, true},
		{"at click cap", Advertisement{ClickCount: 3, MaxClicks: ptr(3)}, true},
		{"past click cap", Advertisement{ClickCount: 4, MaxClicks: ptr(3), MaxViews: ptr(100)}, true},
		{"zero cap", Advertisement{MaxViews: ptr(0)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ad.CapReached())
		})
	}
}

func TestEnumValidation(t *testing.T) {
	assert.True(t, PlacementHomePopup.Valid())
	assert.False(t, Placement("SIDEBAR").Valid())
	assert.True(t, StatusPaused.Valid())
	assert.False(t, Status("DELETED").Valid())
	assert.True(t, EventClick.Valid())
	assert.False(t, EventType("HOVER").Valid())
}
