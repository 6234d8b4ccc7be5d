// Package persistence writes and reads whole-file snapshots.
//
// SaveToFile never leaves a half-written target: content goes to a temporary
// file in the same directory, which is synced and then renamed over the
// target. The directory is synced afterwards on a best-effort basis so the
// rename survives a power loss on POSIX systems. If any step fails, the
// temporary file is removed and the previous target is left as it was.
package persistence
