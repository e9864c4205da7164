// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for the firmware
// loader packages.
//
// [NewFirmwareClass] builds a synthetic firmware-class directory in
// t.TempDir() that stands in for /sys/class/firmware. Request nodes are
// plain directories holding regular "loading" and "data" files, so a
// delivery against them can be checked by reading the files back.
// Regular files are not sysfs attributes: the second write to loading
// overwrites the first at offset 0, so after a full handshake loading
// reads "0\n".
//
// [WriteSource] writes a firmware source file.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no internal dependencies.
package testutil
