package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cheyinl/zuora-soap/config"
	"github.com/cheyinl/zuora-soap/zuora"
)

// app holds state shared by every subcommand of one invocation.
type app struct {
	configPaths []string
	logLevel    string

	logger zerolog.Logger
	client *zuora.Client
}

// NewRootCommand builds the zuoractl command tree.
func NewRootCommand() *cobra.Command {
	a := &app{logger: zerolog.Nop()}
	root := &cobra.Command{
		Use:   "zuoractl",
		Short: "Call the Zuora SOAP API",
		Long: `zuoractl logs in to a Zuora tenant and runs API calls against it.

Credentials and the WSDL location are read from ~/.zuora.toml and ./zuora.toml
(or the files given with --config). Environment variables in the files are
expanded, so secrets can stay out of them:

  wsdl     = "https://apisandbox.zuora.com/apps/services/a/91.0?wsdl"
  username = "api@example.com"
  password = "${ZUORA_PASSWORD}"
`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.PersistentFlags().StringSliceVarP(&a.configPaths, "config", "c", nil,
		"configuration files applied in order (default ~/.zuora.toml, ./zuora.toml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn",
		"log level: trace, debug, info, warn, error")

	root.AddCommand(
		newLoginCommand(a),
		newWhoamiCommand(a),
		newQueryCommand(a),
		newCreateCommand(a),
		newDeleteCommand(a),
		newTypesCommand(a),
	)
	return root
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	level, err := zerolog.ParseLevel(a.logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", a.logLevel, err)
	}
	output := zerolog.ConsoleWriter{
		Out:        cmd.ErrOrStderr(),
		TimeFormat: time.RFC3339,
	}
	a.logger = zerolog.New(output).Level(level).With().Timestamp().Str("app", "zuoractl").Logger()
	return nil
}

func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.configPaths...)
	if err != nil {
		return nil, err
	}
	a.logger.Debug().Strs("sources", cfg.Sources).Msg("configuration loaded")
	return cfg, nil
}

// connect builds the client on first use.
func (a *app) connect(ctx context.Context) (*zuora.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	client, err := zuora.NewFromConfig(ctx, cfg, zuora.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	a.client = client
	return client, nil
}

func writeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
