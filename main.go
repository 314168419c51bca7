package main

import (
	"os"

	"github.com/tomandjerry07030304/smart-hiring-sub000/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
