package main

import (
	"os"

	"github.com/roach88/anchor/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
