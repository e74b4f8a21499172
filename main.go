// SPDX-License-Identifier: Apache-2.0
package main

import (
	"brilopt/internal/driver"
	"brilopt/internal/pipeline"
)

// brilopt runs the standard optimizing pipeline: SSA construction, local
// value numbering, liveness-based dead-code elimination, and SSA
// destruction. JSON in on stdin, JSON out on stdout.
func main() {
	driver.Main(pipeline.Default().Passes()...)
}
