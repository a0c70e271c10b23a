package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aixgo-dev/jenkinsbot/pkg/client"
	"github.com/aixgo-dev/jenkinsbot/pkg/config"
)

type rootOptions struct {
	configFile string
	logLevel   string
	serverURL  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "jenkinsbot",
		Short:        "Jenkins expert question-answering server",
		Version:      Version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", os.Getenv("CONFIG_FILE"), "YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.serverURL, "server", envOr("JENKINSBOT_URL", client.DefaultBaseURL), "chat server URL for client commands")

	cmd.AddCommand(
		newServeCmd(opts),
		newAskCmd(opts),
		newReplCmd(opts),
		newSessionCmd(opts),
		newTranscriptsCmd(opts),
	)
	return cmd
}

// loadConfig loads the configuration and applies the persistent flags.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

func (o *rootOptions) client() *client.Client {
	return client.New(o.serverURL)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
