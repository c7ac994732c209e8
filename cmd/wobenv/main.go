// Package main provides the wobenv command: it drives a pool of browser
// task instances through a number of episodes and reports the results.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	for _, envFile := range []string{
		".env",
		"../../.env",
	} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "wobenv",
		Short:        "wobenv runs batches of web interaction tasks in headless browsers.",
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate(fmt.Sprintf("wobenv v%s\n", version))

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newTasksCmd())
	return rootCmd
}
