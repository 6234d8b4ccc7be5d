// Package fs abstracts the operating-system calls used to persist volumes, so
// that tests can inject failures.
//
//   - [LocalFS] calls the os package. [Default] is a LocalFS.
//   - [FaultyFS] wraps another FileSystem and fails writes, syncs, closes or
//     renames on request.
//
// Simulate a crash halfway through a snapshot save:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".tmp-", fs.Fault{FailAfterBytes: 1024})
//	err := vol.Save(ctx, path) // fails, previous snapshot untouched
//
// Calls take no context.Context. Local file operations cannot be interrupted
// at the syscall level; remote storage goes through blobstore instead.
package fs
