package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/aixgo-dev/jenkinsbot/pkg/chat"
	"github.com/aixgo-dev/jenkinsbot/pkg/client"
)

const replHelp = `Commands:
  /clear   clear the conversation history
  /new     start a new session
  /session show the current session id
  /quit    exit`

func newReplCmd(root *rootOptions) *cobra.Command {
	var (
		sessionID string
		persona   string
		raw       bool
	)

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Chat with the server interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := &repl{
				client:    root.client(),
				out:       newAnswerWriter(cmd.OutOrStdout(), raw),
				msgs:      cmd.ErrOrStderr(),
				sessionID: sessionID,
				persona:   persona,
			}
			return r.run(cmd)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "continue an existing session")
	cmd.Flags().StringVar(&persona, "persona", "", "persona text added to the system prompt")
	cmd.Flags().BoolVar(&raw, "raw", false, "print answers without markdown rendering")
	return cmd
}

type repl struct {
	client    *client.Client
	out       *answerWriter
	msgs      io.Writer
	sessionID string
	persona   string
}

func (r *repl) run(cmd *cobra.Command) error {
	line := liner.NewLiner()
	defer func() { _ = line.Close() }()
	line.SetCtrlCAborts(true)

	histPath := historyPath()
	if f, err := os.Open(histPath); err == nil {
		_, _ = line.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if histPath == "" {
			return
		}
		if f, err := os.Create(histPath); err == nil {
			_, _ = line.WriteHistory(f)
			_ = f.Close()
		}
	}()

	_, _ = fmt.Fprintln(r.msgs, "Ask a Jenkins question. Type /help for commands.")

	ctx := cmd.Context()
	for {
		input, err := line.Prompt("jenkins> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		switch input {
		case "/quit", "/exit":
			return nil
		case "/help":
			_, _ = fmt.Fprintln(r.msgs, replHelp)
			continue
		case "/session":
			_, _ = fmt.Fprintf(r.msgs, "session: %q\n", r.sessionID)
			continue
		case "/new":
			r.sessionID = ""
			_, _ = fmt.Fprintln(r.msgs, "started a new session")
			continue
		case "/clear":
			if r.sessionID == "" {
				_, _ = fmt.Fprintln(r.msgs, "no session yet")
				continue
			}
			if err := r.client.ClearSession(ctx, r.sessionID); err != nil {
				_, _ = fmt.Fprintf(r.msgs, "error: %v\n", err)
				continue
			}
			_, _ = fmt.Fprintln(r.msgs, "session cleared")
			continue
		}

		resp, err := r.client.Chat(ctx, chat.Request{
			Text:      input,
			Persona:   r.persona,
			SessionID: r.sessionID,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			_, _ = fmt.Fprintf(r.msgs, "error: %v\n", err)
			continue
		}
		r.sessionID = resp.SessionID
		if err := r.out.Print(resp.Prediction); err != nil {
			return err
		}
	}
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".jenkinsbot_history")
}
