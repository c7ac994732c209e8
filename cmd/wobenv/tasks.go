package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/entrhq/wobenv/pkg/tasks"
)

func newTasksCmd() *cobra.Command {
	var (
		baseURL string
		include []string
		exclude []string
	)
	cmd := &cobra.Command{
		Use:   "tasks [pattern...]",
		Short: "List the tasks available in a local task directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := tasks.NewSelector(append(include, args...), exclude)
			if err != nil {
				return err
			}
			dir, err := tasks.LocalDir(baseURL)
			if err != nil {
				return err
			}
			ids, err := sel.List(dir)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "file:// URL of the html directory (default: $"+tasks.HTMLDirEnv+" or ./html)")
	cmd.Flags().StringSliceVar(&include, "include", nil, "Glob patterns to include")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Glob patterns to exclude")
	return cmd
}
