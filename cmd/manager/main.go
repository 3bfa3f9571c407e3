package main

import (
	"os"

	"error-english/manager-go/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args))
}
