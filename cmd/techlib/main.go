package main

import (
	"os"

	"github.com/htol/techlib/app"
)

func main() {
	os.Exit(app.CLI(os.Args[1:]))
}
