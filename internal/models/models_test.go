package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseStatusString(t *testing.T) {
	tests := []struct {
		status DatabaseStatus
		want   string
	}{
		{StatusReviewing, "reviewing"},
		{StatusActive, "active"},
		{StatusReconfiguring, "reconfiguring"},
		{StatusDeleted, "deleted"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, string(tt.status))
		})
	}
}

func TestValidWorkload(t *testing.T) {
	for _, w := range []DatabaseWorkload{WorkloadSmall, WorkloadMedium, WorkloadLarge} {
		t.Run(string(w), func(t *testing.T) {
			assert.True(t, ValidWorkload(w))
		})
	}
	t.Run("unknown", func(t *testing.T) {
		assert.False(t, ValidWorkload("huge"))
		assert.False(t, ValidWorkload(""))
	})
}

func TestCallerContextAdmin(t *testing.T) {
	assert.True(t, CallerContext{CallType: CallTypeAdmin}.Admin())
	assert.False(t, CallerContext{CallType: CallTypeUser}.Admin())
	assert.False(t, CallerContext{}.Admin())
}

func TestDatabaseCurrentCase(t *testing.T) {
	t.Run("no cases", func(t *testing.T) {
		_, ok := Database{}.CurrentCase()
		assert.False(t, ok)
	})

	t.Run("last case wins", func(t *testing.T) {
		d := Database{Cases: []CaseRef{{ID: "CA-1"}, {ID: "CA-2"}}}
		got, ok := d.CurrentCase()
		assert.True(t, ok)
		assert.Equal(t, CaseRef{ID: "CA-2"}, got)
	})
}

func TestDatabaseDeleted(t *testing.T) {
	assert.True(t, Database{Status: StatusDeleted}.Deleted())
	assert.False(t, Database{Status: StatusActive}.Deleted())

	d := Database{
		Status: StatusReviewing,
		Events: map[string]EventRecord{
			EventCreated: {At: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
	assert.False(t, d.Deleted())
}
