// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// sysfs-fw-loader answers kernel firmware requests made through the
// firmware-class fallback interface. It is meant to run once at boot,
// before the drivers that need it give up waiting.
//
// At startup it reads firmware mappings (logical name → source file)
// from the config directory, then polls /sys/class/firmware/. Whenever
// a request node whose name contains a mapping's logical name appears,
// it performs the loading/data handshake with that mapping's file and
// marks the mapping done. It exits 0 once every mapping is delivered,
// or when no new delivery has happened for the stall timeout. Mappings
// still pending at that point are left alone; the log shows which ones
// by the absence of a "loading firmware" line.
//
// Any I/O error while scanning or delivering is fatal: the message goes
// to stderr and the exit status is 1. Nothing is skipped or retried.
//
// Configuration:
//
//	--config-dir     mapping directory ($SYSFS_FW_LOADER_CONFIG_DIR, default /etc/sysfs_fw_loader/)
//	--sysfs-dir      firmware-class directory (default /sys/class/firmware)
//	--timeout        stall timeout, seconds or a duration ($SYSFS_FW_LOADER_TIMEOUT, default 30s, 0 waits forever)
//	--poll-interval  delay between scans (default 100ms)
//	--log-format     auto, text, or json (auto picks text on a terminal)
//	--log-level      debug, info, warn, or error
//
// See package fwconfig for the mapping file format.
package main
