// Command mofrac is the MOFRAC-Engine command line interface.
package main

import (
	"os"

	"github.com/turtacn/MOFRAC-Engine/internal/interfaces/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
