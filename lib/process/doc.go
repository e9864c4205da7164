// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the binary entrypoint's last-resort error
// path: reporting a fatal error on stderr and exiting non-zero. It is
// used from main() only, where the structured logger may not exist yet
// (bad flags) or may be the thing that failed.
package process
