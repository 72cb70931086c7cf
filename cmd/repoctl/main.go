// Command repoctl inspects method names, runs a sample repository session
// and serves the introspection API.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
