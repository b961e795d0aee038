package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harborline/keel/pkg/errors"
	"github.com/harborline/keel/pkg/models"
)

func TestGroupsStale(t *testing.T) {
	partial := errors.NewPartialFailure("clone", []models.CloneOutcome{
		{CarrierID: "c2", CarrierName: "EURO LINE", ServiceID: "s2", Succeeded: true},
		{CarrierID: "c3", CarrierName: "PACIFIC WAY", Error: "duplicate name"},
	})

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "all clones landed", err: nil, want: true},
		{name: "partial failure keeps succeeded clones", err: partial, want: true},
		{name: "validation rejects before any clone", err: errors.NewValidationError("bad carrier"), want: false},
		{name: "store failure", err: assert.AnError, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, groupsStale(tt.err))
		})
	}
}
