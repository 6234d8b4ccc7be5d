// Package acl decides whether an identity may read, write, or delete a file.
//
// The rules are:
//
//   - Write and Delete: the file owner or Admin.
//   - Read: the file owner, Admin, or any identity in the allowed-user list.
//
// The allowed-user list grants read access only. Identities are plain
// strings; nothing here authenticates them.
package acl

import (
	"errors"
	"fmt"
	"slices"
)

// Admin is the identity that passes every check.
const Admin = "admin"

// ErrAccessDenied is matched by every *DeniedError.
var ErrAccessDenied = errors.New("access denied")

// Operation is a file operation subject to access control.
type Operation uint8

const (
	// Read covers reading file content.
	Read Operation = iota + 1
	// Write covers overwriting file content.
	Write
	// Delete covers removing a file.
	Delete
)

func (op Operation) String() string {
	switch op {
	case Read:
		return "read"
	case Write:
		return "write"
	case Delete:
		return "delete"
	default:
		return fmt.Sprintf("operation(%d)", uint8(op))
	}
}

// DeniedError reports a failed check.
type DeniedError struct {
	Actor string
	Owner string
	Op    Operation
}

func (e *DeniedError) Error() string {
	if e.Op == Read {
		return fmt.Sprintf("access denied: %s is not allowed to read this file", e.Actor)
	}
	return fmt.Sprintf("access denied: only the owner (%s) or %s can %s this file", e.Owner, Admin, e.Op)
}

// Is reports whether target is ErrAccessDenied.
func (e *DeniedError) Is(target error) bool { return target == ErrAccessDenied }

// Check returns nil if actor may perform op on a file with the given owner
// and allowed readers, and a *DeniedError otherwise.
func Check(owner string, allowed []string, actor string, op Operation) error {
	if Allowed(owner, allowed, actor, op) {
		return nil
	}
	return &DeniedError{Actor: actor, Owner: owner, Op: op}
}

// Allowed is Check without the error value.
func Allowed(owner string, allowed []string, actor string, op Operation) bool {
	if actor == owner || actor == Admin {
		return true
	}
	switch op {
	case Read:
		return slices.Contains(allowed, actor)
	default:
		return false
	}
}
