// Package mmap maps local blob files read-only.
//
//	m, err := mmap.Open("index.sfa")
//	if err != nil { ... }
//	defer m.Close()
//	_ = m.Advise(mmap.AccessSequential)
//	data := m.Bytes()
//
// Unix uses mmap(2) and madvise(2) via golang.org/x/sys/unix; Windows uses
// MapViewOfFile and ignores access hints. Close is idempotent, but callers
// must not touch Bytes after it returns.
package mmap
