package acl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	owner := "alice"
	allowed := []string{"bob"}

	tests := []struct {
		actor string
		op    Operation
		allow bool
	}{
		{"alice", Read, true},
		{"alice", Write, true},
		{"alice", Delete, true},
		{"bob", Read, true},
		{"bob", Write, false},
		{"bob", Delete, false},
		{"carol", Read, false},
		{"carol", Write, false},
		{"carol", Delete, false},
		{Admin, Read, true},
		{Admin, Write, true},
		{Admin, Delete, true},
		{"", Read, false},
	}

	for _, tt := range tests {
		t.Run(tt.actor+"/"+tt.op.String(), func(t *testing.T) {
			err := Check(owner, allowed, tt.actor, tt.op)
			if tt.allow {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrAccessDenied)

			var denied *DeniedError
			require.True(t, errors.As(err, &denied))
			assert.Equal(t, tt.actor, denied.Actor)
			assert.Equal(t, tt.op, denied.Op)
		})
	}
}

func TestCheck_EmptyOwnerMatchesEmptyActor(t *testing.T) {
	assert.NoError(t, Check("", nil, "", Write))
}

func TestDeniedError_Message(t *testing.T) {
	err := Check("alice", nil, "bob", Read)
	assert.EqualError(t, err, "access denied: bob is not allowed to read this file")

	err = Check("alice", []string{"bob"}, "bob", Delete)
	assert.EqualError(t, err, "access denied: only the owner (alice) or admin can delete this file")
}

func TestOperation_String(t *testing.T) {
	assert.Equal(t, "read", Read.String())
	assert.Equal(t, "write", Write.String())
	assert.Equal(t, "delete", Delete.String())
	assert.Equal(t, "operation(0)", Operation(0).String())
}
