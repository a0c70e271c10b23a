package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/aixgo-dev/jenkinsbot/pkg/transcript"
)

func newTranscriptsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcripts",
		Short: "Work with recorded chat transcripts",
	}

	var (
		output string
		limit  int64
	)
	export := &cobra.Command{
		Use:   "export",
		Short: "Export recorded exchanges from Redis as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Transcripts.Addr == "" {
				return errors.New("no transcript store configured (set transcripts.addr or REDIS_ADDR)")
			}

			sink, err := transcript.NewRedisStreamSink(cfg.Transcripts)
			if err != nil {
				return err
			}
			defer func() { _ = sink.Close() }()

			records, err := sink.Records(cmd.Context(), limit)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				w = f
			}

			if err := transcript.WriteCSV(w, records); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "exported %d records\n", len(records))
			return nil
		},
	}
	export.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	export.Flags().Int64Var(&limit, "limit", 0, "maximum number of records (0 exports all)")

	cmd.AddCommand(export)
	return cmd
}
