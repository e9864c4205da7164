// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package firmware implements the userspace half of the Linux
// firmware-class fallback protocol. A kernel driver that cannot find a
// firmware blob on its own creates a request directory under
// /sys/class/firmware/ and waits; this package finds those directories,
// pairs them with configured (logical name → source file) mappings, and
// feeds the blob back through the sysfs "loading/data" handshake.
//
// The pieces, leaves first:
//
//   - [Registry] holds the configured [Entry] values and their
//     one-way delivered flag.
//   - [Scanner] lists the request names currently present in the
//     firmware-class directory. [DirScanner] is the filesystem
//     implementation.
//   - [Matches] decides whether a request name belongs to an entry. The
//     rule is substring containment, not equality: kernel request names
//     carry driver-specific decoration around the logical name.
//   - [Deliverer] performs the handshake for one request node.
//   - [Scheduler] drives scan/match/deliver cycles with a fixed poll
//     interval and stops on completion or after a run of stalled cycles.
//
// # Handshake
//
// For a request node N and a source file S:
//
//  1. write "1\n" to N/loading
//  2. if S is non-empty: map S read-only and write all of it to N/data
//  3. write "0\n" to N/loading
//
// The kernel only accepts data between the two loading writes, so the
// steps are strictly sequential. An empty S skips step 2, which tells
// the kernel no firmware is available.
//
// Sources named *.zst or *.lz4 are decoded after mapping and the decoded
// bytes are written instead.
//
// # Errors
//
// Every I/O failure is returned as an [*Error] carrying a [Kind] and the
// failing path. The scheduler does not retry or skip: the first error
// ends the run and is handed to the caller.
//
// Nothing in this package is safe for concurrent use. The scheduler is
// the only goroutine that touches the registry.
package firmware
