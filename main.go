// The main package for the reviewcrawler executable.
package main

import (
	"github.com/platemetrics/review-crawler/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
