package main

import (
	"os"

	"github.com/noah-isme/syllabus-portal/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
