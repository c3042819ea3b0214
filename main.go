package main

import (
	"os"

	"github.com/SankrityaT/Navia-sub000/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
