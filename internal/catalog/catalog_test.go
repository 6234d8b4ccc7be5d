package catalog

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDirectory(t *testing.T) {
	ns := New(Limits{MaxDirectories: 2})

	_, err := ns.CreateDirectory("root")
	require.NoError(t, err)

	_, err = ns.CreateDirectory("root")
	require.ErrorIs(t, err, ErrDuplicate)

	_, err = ns.CreateDirectory("documents")
	require.NoError(t, err)

	_, err = ns.CreateDirectory("extra")
	require.ErrorIs(t, err, ErrCapacity)

	var names []string
	for _, d := range ns.Directories() {
		names = append(names, d.Name())
	}
	assert.Equal(t, []string{"root", "documents"}, names)

	_, err = ns.Directory("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateDirectory_InvalidName(t *testing.T) {
	ns := New(Limits{})

	_, err := ns.CreateDirectory("")
	require.ErrorIs(t, err, ErrInvalidName)

	_, err = ns.CreateDirectory(strings.Repeat("d", MaxDirectoryNameLength+1))
	require.ErrorIs(t, err, ErrInvalidName)

	_, err = ns.CreateDirectory(strings.Repeat("d", MaxDirectoryNameLength))
	require.NoError(t, err)
}

func TestUnboundedLimits(t *testing.T) {
	ns := New(Limits{})
	for i := 0; i < 50; i++ {
		_, err := ns.CreateDirectory(fmt.Sprintf("d%02d", i))
		require.NoError(t, err)
	}
	assert.Len(t, ns.Directories(), 50)
}

func TestCreateUser(t *testing.T) {
	ns := New(Limits{MaxUsers: 2})

	require.NoError(t, ns.CreateUser("admin"))
	require.ErrorIs(t, ns.CreateUser("admin"), ErrDuplicate)
	require.NoError(t, ns.CreateUser("user1"))
	require.ErrorIs(t, ns.CreateUser("user2"), ErrCapacity)
	require.ErrorIs(t, ns.CreateUser(""), ErrInvalidName)

	assert.Equal(t, []string{"admin", "user1"}, ns.Users())
}

func TestDirectory_AddLookupRemove(t *testing.T) {
	ns := New(Limits{MaxFilesPerDirectory: 3})
	d, err := ns.CreateDirectory("docs")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0)
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, d.Add(&Entry{Name: name, Size: 1, CreatedAt: now, Owner: "alice"}))
	}
	assert.Equal(t, 3, ns.FileCount())

	err = d.Add(&Entry{Name: "a"})
	require.ErrorIs(t, err, ErrDuplicate)

	err = d.Add(&Entry{Name: "d"})
	require.ErrorIs(t, err, ErrCapacity)

	e, err := d.Lookup("b")
	require.NoError(t, err)
	assert.Equal(t, "alice", e.Owner)

	removed, err := d.Remove("a")
	require.NoError(t, err)
	assert.Equal(t, "a", removed.Name)
	assert.Equal(t, []string{"b", "c"}, d.Names())

	// Indexes shift with the remainder.
	e, err = d.Lookup("c")
	require.NoError(t, err)
	assert.Equal(t, "c", e.Name)

	_, err = d.Lookup("a")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = d.Remove("a")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, d.Add(&Entry{Name: "a"}))
	assert.Equal(t, []string{"b", "c", "a"}, d.Names())
}

func TestDirectory_AddInvalidName(t *testing.T) {
	d := newDirectory("docs", 0)
	require.ErrorIs(t, d.Add(&Entry{Name: ""}), ErrInvalidName)
	require.ErrorIs(t, d.Add(&Entry{Name: strings.Repeat("f", MaxFileNameLength+1)}), ErrInvalidName)
	assert.Equal(t, 0, d.Len())
}

func TestValidateAllowed(t *testing.T) {
	ns := New(Limits{MaxAllowedUsers: 2})

	require.NoError(t, ns.ValidateAllowed(nil))
	require.NoError(t, ns.ValidateAllowed([]string{"bob", "carol"}))
	require.ErrorIs(t, ns.ValidateAllowed([]string{"bob", "carol", "dave"}), ErrCapacity)
	require.ErrorIs(t, ns.ValidateAllowed([]string{""}), ErrInvalidName)
}
