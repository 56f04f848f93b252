// Package shm maps memory regions that a longmap can live in.
//
// [Anonymous] returns private, zero-filled memory owned by one process.
// [OpenFile] maps a file with MAP_SHARED so that every process mapping the
// same path sees the same bytes; writes reach the file when the kernel
// flushes dirty pages or when [Region.Sync] is called.
//
// A Region does no locking. Coordinate writers with a file lock (see the
// shmap package).
package shm
