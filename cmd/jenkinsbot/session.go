package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSessionCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage sessions on a running server",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "clear SESSION_ID",
			Short: "Clear the history of a session",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := root.client().ClearSession(cmd.Context(), args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "session %s cleared\n", args[0])
				return err
			},
		},
		&cobra.Command{
			Use:   "cleanup",
			Short: "Remove expired sessions",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				removed, err := root.client().Cleanup(cmd.Context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired sessions\n", removed)
				return err
			},
		},
	)
	return cmd
}
