// Command scout discovers candidate domains for a lead generation audit.
package main

import (
	"os"

	"github.com/FranksOps/scout/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
