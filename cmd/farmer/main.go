// farmer connects local and remote harvesters to a full node and its pools.
package main

import (
	"fmt"
	"os"

	"github.com/plotfarm/go-farmer/cmd"
	"github.com/plotfarm/go-farmer/node"
)

var (
	version string
	commit  string
	branch  string
)

func main() {
	cmd.Version = version
	cmd.Commit = commit
	cmd.Branch = branch
	if err := node.GetCommand().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
