package main

import (
	"os"

	"github.com/stackvault/stackvault/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
