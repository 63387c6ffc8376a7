// The main package for the taxforms executable.
package main

import (
	"github.com/borshchevsky/tax-forms-scraper/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
