package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		want   string
		isUser bool
	}{
		{
			name:   "missing argument",
			err:    &ValidationError{Field: "table_number"},
			want:   "Argument <table_number> not satisfied",
			isUser: true,
		},
		{
			name:   "bad argument",
			err:    &ValidationError{Field: "table_number", Reason: "invalid digit found in string"},
			want:   "Failed parsing argument <table_number>: invalid digit found in string",
			isUser: true,
		},
		{
			name:   "already grouped",
			err:    &PreconditionError{Err: ErrAlreadyGrouped, Label: "Table 2"},
			want:   "You're already part of a team!",
			isUser: true,
		},
		{
			name:   "not in group",
			err:    fmt.Errorf("leave: %w", &PreconditionError{Err: ErrNotInGroup, Label: "Table 7"}),
			want:   "You're not part of 'Table 7'!",
			isUser: true,
		},
		{
			name: "transport",
			err:  errors.New("dial tcp: connection refused"),
			want: "Command 'join' failed, please try again in a moment.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage("join", tt.err))
			assert.Equal(t, tt.isUser, IsUserError(tt.err))
		})
	}
}
