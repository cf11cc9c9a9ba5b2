package main

import (
	"os"

	"github.com/grovetools/wsync/cmd"
)

func main() {
	os.Exit(cmd.Execute(os.Args[1:]))
}
