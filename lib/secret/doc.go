// Copyright 2026 The Dotmatrix Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds passwords and access tokens outside the Go heap.
//
// A [Buffer] is an anonymous mmap region that the garbage collector never
// sees or copies. The region is mlocked against swap and excluded from
// core dumps when the kernel allows it, and zeroed and unmapped on Close.
//
// Desktop sessions frequently run with a small RLIMIT_MEMLOCK, so a
// failed mlock is not fatal here: the buffer still lives off-heap and is
// still zeroed on Close. [Buffer.Locked] reports whether the lock held.
package secret
