// Command otpmigrate reads, writes and stores authenticator migration exports.
package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"otpmigrate/internal/config"
	"otpmigrate/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("otpmigrate failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "otpmigrate",
		Short:         "Authenticator migration tool",
		Long:          "Decode and build otpauth-migration exports and keep their accounts in an encrypted vault.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Config file (default "+config.Path()+")")
	flags.StringVar(&a.vaultPath, "vault", "", "Vault file")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error, disabled")
	flags.StringVar(&a.format, "format", "", "Output format: table, json, csv, url")

	root.AddCommand(
		decodeCmd(a),
		encodeCmd(a),
		importCmd(a),
		listCmd(a),
		codeCmd(a),
		removeCmd(a),
		renameCmd(a),
		exportCmd(a),
		configCmd(a),
	)
	return root
}

// setup resolves configuration with flags taking precedence over the
// environment and the config file.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("vault") {
		cfg.VaultPath = a.vaultPath
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("format") {
		cfg.Format = a.format
	}
	if _, ok := logging.ParseLevel(cfg.LogLevel); !ok {
		return errUnknown("log level", cfg.LogLevel)
	}
	if !validFormat(cfg.Format) {
		return errUnknown("format", cfg.Format)
	}
	a.cfg = cfg
	logging.Setup(cmd.ErrOrStderr(), cfg.LogLevel)
	log.Debug().Str("vault", cfg.VaultPath).Str("format", cfg.Format).Msg("configuration loaded")
	return nil
}
