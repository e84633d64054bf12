package main

import (
	"os"

	"github.com/wonny/alphalab/cmd/alphalab/commands"
)

// main is the entry point for the alphalab CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/alphalab [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
