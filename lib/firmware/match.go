// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package firmware

import "strings"

// Matches reports whether request, a directory name under the
// firmware-class directory, is a request for the logical firmware name.
//
// The test is plain substring containment. Request names are built by
// drivers and decorate the firmware name with their own prefixes and
// suffixes, so equality would miss them. The cost is ambiguity: "eth"
// matches a request for "eth0.bin", and whichever entry is scanned
// first claims the node. Deployments rely on this rule; do not tighten
// it to a prefix or exact match.
func Matches(name, request string) bool {
	return strings.Contains(request, name)
}
