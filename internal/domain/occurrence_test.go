package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	statuses := []OccurrenceStatus{OccurrenceStatusOpen, OccurrenceStatusInProgress, OccurrenceStatusClosed, "ARCHIVED"}
	allowed := map[[2]OccurrenceStatus]bool{
		{OccurrenceStatusOpen, OccurrenceStatusInProgress}:   true,
		{OccurrenceStatusInProgress, OccurrenceStatusClosed}: true,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				assert.Equal(t, allowed[[2]OccurrenceStatus{from, to}], CanTransition(from, to))
			})
		}
	}
}

func TestCanRemove(t *testing.T) {
	tests := []struct {
		name string
		o    *Occurrence
		want bool
	}{
		{name: "nil", o: nil, want: false},
		{name: "open", o: &Occurrence{Status: OccurrenceStatusOpen}, want: true},
		{name: "in progress", o: &Occurrence{Status: OccurrenceStatusInProgress}, want: true},
		{name: "closed", o: &Occurrence{Status: OccurrenceStatusClosed}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanRemove(tt.o))
		})
	}
}
