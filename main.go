// The main package for the freebie-watch executable.
package main

import (
	"github.com/JakeFAU/freebie-watch/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
