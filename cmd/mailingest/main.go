package main

import (
	"os"

	"github.com/newdok/mailingest/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
