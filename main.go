// The main package for the weibo-harvester executable.
package main

import (
	"github.com/JakeFAU/weibo-harvester/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
