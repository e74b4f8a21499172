// SPDX-License-Identifier: Apache-2.0
package main

import (
	"brilopt/internal/driver"
	"brilopt/internal/pipeline"
)

func main() {
	driver.Main(pipeline.ToSSA{})
}
