// Package main provides the entry point for the resume chat HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "resume_chat",
	Short: "Conversational resume builder HTTP API server",
	Long:  "Resume Chat builds resumes and cover letters through conversation: each chat message becomes a validated partial update that is merged into the session's document.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
