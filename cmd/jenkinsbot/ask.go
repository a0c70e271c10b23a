package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aixgo-dev/jenkinsbot/pkg/chat"
)

func newAskCmd(root *rootOptions) *cobra.Command {
	var (
		sessionID string
		persona   string
		raw       bool
	)

	cmd := &cobra.Command{
		Use:   "ask QUESTION...",
		Short: "Ask the server a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := root.client().Chat(cmd.Context(), chat.Request{
				Text:      strings.Join(args, " "),
				Persona:   persona,
				SessionID: sessionID,
			})
			if err != nil {
				return err
			}

			if err := newAnswerWriter(cmd.OutOrStdout(), raw).Print(resp.Prediction); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "session %s (%d messages)\n", resp.SessionID, resp.MessageCount)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "continue an existing session")
	cmd.Flags().StringVar(&persona, "persona", "", "persona text added to the system prompt")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the answer without markdown rendering")
	return cmd
}
