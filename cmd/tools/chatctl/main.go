package main

import (
	"os"

	"github.com/zhouzirui/penpal/backend/cmd/tools/chatctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
