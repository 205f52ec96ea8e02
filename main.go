// The main package for the regwatch executable.
package main

import (
	"github.com/huntwise/regwatch/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
