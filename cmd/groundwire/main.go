package main

import (
	"os"

	"groundwire/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
