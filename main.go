package main

import (
	"fmt"
	"os"

	"chatclone/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "chatclone:", err)
		os.Exit(1)
	}
}
