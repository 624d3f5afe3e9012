// The main package for the notecrawler executable.
package main

import (
	"notecrawler/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
