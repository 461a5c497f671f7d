package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luminate-inc/vai/pkg/videoFs"
)

// newCacheCmd exposes the local S3 staging cache videoFs.Fetch/Publish
// read and write, so a user working with s3:// addressing can see
// what's already been pulled down without re-fetching it.
func newCacheCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cache",
		Short: "List .vai containers staged in the local S3 cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			containers, err := videoFs.AvailableCached()
			if err != nil {
				return fmt.Errorf("cache: %w", err)
			}
			if len(containers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no cached containers")
				return nil
			}
			for _, c := range containers {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
}
