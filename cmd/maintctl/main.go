// Command maintctl is the CLI front end for the SQL Server index
// maintenance orchestrator.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
