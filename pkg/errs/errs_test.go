package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient_MatchesKnownSubstrings(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"transient error marker", errors.New("Neo.TransientError.Transaction.Terminated"), true},
		{"conflicting transactions", errors.New("conflicting transactions detected"), true},
		{"deadlock", errors.New("deadlock found when trying to get lock"), true},
		{"timeout", errors.New("context deadline exceeded: timeout"), true},
		{"case-insensitive", errors.New("DEADLOCK during commit"), true},
		{"unrelated error", errors.New("syntax error near CALL"), false},
		{"nil error", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}

func TestLoaderError_UnwrapAndMessage(t *testing.T) {
	inner := errors.New("connection refused")
	wrapped := New(KindConnection, "graph.Connect", inner)

	assert.ErrorIs(t, wrapped, inner)
	assert.Equal(t, "graph.Connect: connection: connection refused", wrapped.Error())
}
