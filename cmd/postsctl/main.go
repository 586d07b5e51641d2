// ABOUTME: Entry point for the postsctl CLI
// ABOUTME: Command-line client for the woragis posts and auth services

package main

import (
	"fmt"
	"os"

	"github.com/woragis/woragis-posts-frontend/internal/cmd"
	"github.com/woragis/woragis-posts-frontend/logger"
)

func main() {
	logger.Init()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
