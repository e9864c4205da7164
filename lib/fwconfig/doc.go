// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fwconfig reads firmware mapping files for the loader.
//
// Mappings live in a directory, [DefaultDirectory] unless
// SYSFS_FW_LOADER_CONFIG_DIR or --config-dir says otherwise. Every
// regular, non-hidden file in it is read in name order. Files ending in
// .yaml or .yml are YAML; anything else is JSONC (JSON with // and /* */
// comments and trailing commas, so plain JSON also works).
//
// A file holds either one mapping or an array of them:
//
//	// /etc/sysfs_fw_loader/wifi.json
//	[
//	    {"name": "brcmfmac43455-sdio.bin", "file": "/lib/firmware/brcm/brcmfmac43455-sdio.bin"},
//	    {"name": "brcmfmac43455-sdio.txt", "file": ""},  // no NVRAM on this board
//	]
//
// "name" is required. "file" may be missing or empty, which tells the
// kernel there is no firmware for that request. Array elements that are
// not objects are skipped, and a document that is neither an object nor
// an array contributes nothing. Records are returned flat, in file order
// and then document order; duplicates are kept.
package fwconfig
