// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"io"
	"os"
)

// Fatal writes "program: error: err" to stderr and exits with code 1.
func Fatal(program string, err error) {
	Report(os.Stderr, program, err)
	os.Exit(1)
}

// Report writes the message Fatal would write to w.
func Report(w io.Writer, program string, err error) {
	fmt.Fprintf(w, "%s: error: %v\n", program, err)
}
