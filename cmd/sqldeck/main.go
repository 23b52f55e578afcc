// Command sqldeck is a PostgreSQL workbench for the terminal.
package main

import (
	"os"

	"github.com/sqldeck/sqldeck/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
