// Idiomatic entrypoint for the Cobra CLI that delegates to the root command in cmd/root.go.

package main

import (
	"github.com/gangsched/gangsched/cmd"
)

func main() {
	cmd.Execute()
}
