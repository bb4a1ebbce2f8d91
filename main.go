package main

import (
	"os"

	"github.com/rohanthewiz/logger"

	"notevault/cli"
)

func main() {
	logger.SetLogLevel("info")

	// cobra has already printed the error
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
