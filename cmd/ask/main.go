package main

import (
	"os"

	"github.com/avi1989/ask/internal/cli"
)

func main() {
	code := cli.Run(os.Args[1:])
	os.Exit(code)
}
