package main

import (
	"os"

	"latexcv/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
