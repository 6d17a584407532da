package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"otpmigrate/internal/config"
	"otpmigrate/internal/migration"
	"otpmigrate/internal/otpauth"
	"otpmigrate/internal/vault"
)

func decodeCmd(a *app) *cobra.Command {
	var (
		qrDir    string
		validate bool
	)
	cmd := &cobra.Command{
		Use:   "decode [uri|@file|-]...",
		Short: "Print the accounts inside migration URIs",
		RunE: func(cmd *cobra.Command, args []string) error {
			payloads, err := a.payloads(cmd, args)
			if err != nil {
				return err
			}
			params, err := collect(payloads, validate)
			if err != nil {
				return err
			}
			if qrDir != "" {
				urls, err := keyURLs(params)
				if err != nil {
					return err
				}
				names := make([]string, len(params))
				for i, p := range params {
					names[i] = fileName(i, otpauth.Label(p))
				}
				if err := writeQRFiles(qrDir, a.cfg.QRSize, names, urls); err != nil {
					return err
				}
			}
			return printAccounts(cmd.OutOrStdout(), a.cfg.Format, params)
		},
	}
	cmd.Flags().StringVar(&qrDir, "qr-dir", "", "Write an otpauth QR code per account to this directory")
	cmd.Flags().BoolVar(&validate, "validate", false, "Require a complete, consistent set of batches")
	return cmd
}

func encodeCmd(a *app) *cobra.Command {
	var (
		qrDir     string
		batchSize int
	)
	cmd := &cobra.Command{
		Use:   "encode [otpauth-url|@file|-]...",
		Short: "Build migration URIs from otpauth:// URLs",
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := a.inputs(cmd, args)
			if err != nil {
				return err
			}
			params := make([]migration.OtpParameters, 0, len(lines))
			for i, line := range lines {
				p, err := otpauth.ParametersFromURL(line)
				if err != nil {
					return fmt.Errorf("input %d: %w", i+1, err)
				}
				params = append(params, p)
			}
			if !cmd.Flags().Changed("batch-size") {
				batchSize = a.cfg.BatchSize
			}
			return a.emit(cmd, params, batchSize, qrDir)
		},
	}
	cmd.Flags().StringVar(&qrDir, "qr-dir", "", "Write a QR code per migration URI to this directory")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Accounts per migration URI (default from config)")
	return cmd
}

func importCmd(a *app) *cobra.Command {
	var validate bool
	cmd := &cobra.Command{
		Use:   "import [uri|@file|-]...",
		Short: "Add the accounts inside migration URIs to the vault",
		RunE: func(cmd *cobra.Command, args []string) error {
			payloads, err := a.payloads(cmd, args)
			if err != nil {
				return err
			}
			params, err := collect(payloads, validate)
			if err != nil {
				return err
			}
			v, err := a.openVault(cmd)
			if err != nil {
				return err
			}
			added, err := v.Import(migration.MigrationPayload{OtpParameters: params})
			if err != nil {
				return err
			}
			if err := v.Save(); err != nil {
				return err
			}
			log.Info().Str("vault", v.Path()).Int("added", added).Int("skipped", len(params)-added).Msg("import complete")
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d accounts\n", added, len(params))
			return nil
		},
	}
	cmd.Flags().BoolVar(&validate, "validate", false, "Require a complete, consistent set of batches")
	return cmd
}

func listCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List vault accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.openVault(cmd)
			if err != nil {
				return err
			}
			params, err := v.Parameters()
			if err != nil {
				return err
			}
			return printAccounts(cmd.OutOrStdout(), a.cfg.Format, params)
		},
	}
}

func codeCmd(a *app) *cobra.Command {
	var (
		watch   bool
		advance bool
	)
	cmd := &cobra.Command{
		Use:   "code [query]",
		Short: "Show current codes for matching accounts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.openVault(cmd)
			if err != nil {
				return err
			}
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			matches := v.Find(query)
			if len(matches) == 0 {
				return fmt.Errorf("%w matching %q", vault.ErrNoSuchAccount, query)
			}
			if advance {
				if err := advanceCounters(v, matches); err != nil {
					return err
				}
			}
			if !watch {
				return a.printCodes(cmd, v, matches, time.Now())
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.watchCodes(ctx, cmd, v, matches)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "Refresh at each period boundary until interrupted")
	cmd.Flags().BoolVar(&advance, "advance", false, "Step matching HOTP counters before showing codes")
	return cmd
}

func advanceCounters(v *vault.Vault, matches []int) error {
	accounts := v.Accounts()
	for _, i := range matches {
		if migration.OtpType(accounts[i].Type) != migration.OtpTypeHOTP {
			continue
		}
		if err := v.Advance(i); err != nil {
			return err
		}
	}
	return v.Save()
}

func (a *app) watchCodes(ctx context.Context, cmd *cobra.Command, v *vault.Vault, matches []int) error {
	for {
		now := time.Now()
		if err := a.printCodes(cmd, v, matches, now); err != nil {
			return err
		}
		timer := time.NewTimer(otpauth.Remaining(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (a *app) printCodes(cmd *cobra.Command, v *vault.Vault, matches []int, now time.Time) error {
	accounts := v.Accounts()
	rows := make([]codeRow, 0, len(matches))
	for _, i := range matches {
		p, err := accounts[i].Parameters()
		if err != nil {
			return err
		}
		code, err := otpauth.Code(p, now)
		if err != nil {
			log.Warn().Err(err).Str("account", accounts[i].Label()).Msg("cannot generate code")
			continue
		}
		row := codeRow{Index: i + 1, Account: accounts[i].Label(), Code: code}
		if p.Type == migration.OtpTypeTOTP {
			row.Expires = int(otpauth.Remaining(now).Round(time.Second) / time.Second)
		}
		rows = append(rows, row)
	}
	return printCodes(cmd.OutOrStdout(), a.cfg.Format, rows)
}

func removeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <n>",
		Short: "Remove the account at position n of the list output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.openVault(cmd)
			if err != nil {
				return err
			}
			i, err := accountIndex(v, args[0])
			if err != nil {
				return err
			}
			label := v.Accounts()[i].Label()
			if err := v.Remove(i); err != nil {
				return err
			}
			if err := v.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", label)
			return nil
		},
	}
}

func renameCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <n> <name> [issuer]",
		Short: "Change the name and optionally the issuer of an account",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.openVault(cmd)
			if err != nil {
				return err
			}
			i, err := accountIndex(v, args[0])
			if err != nil {
				return err
			}
			issuer := ""
			if len(args) == 3 {
				issuer = args[2]
			}
			if err := v.Edit(i, args[1], issuer); err != nil {
				return err
			}
			if err := v.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed to %s\n", v.Accounts()[i].Label())
			return nil
		},
	}
}

func exportCmd(a *app) *cobra.Command {
	var (
		qrDir     string
		batchSize int
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write vault accounts as migration URIs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.openVault(cmd)
			if err != nil {
				return err
			}
			params, err := v.Parameters()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("batch-size") {
				batchSize = a.cfg.BatchSize
			}
			return a.emit(cmd, params, batchSize, qrDir)
		},
	}
	cmd.Flags().StringVar(&qrDir, "qr-dir", "", "Write a QR code per migration URI to this directory")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Accounts per migration URI (default from config)")
	return cmd
}

// emit splits params into batches sharing a random id and prints them.
func (a *app) emit(cmd *cobra.Command, params []migration.OtpParameters, batchSize int, qrDir string) error {
	payloads := migration.Split(params, batchSize, rand.Int31())
	log.Debug().Int("accounts", len(params)).Int("batches", len(payloads)).Msg("payloads built")
	if qrDir != "" {
		names := make([]string, len(payloads))
		uris := make([]string, len(payloads))
		for i, p := range payloads {
			names[i] = fmt.Sprintf("migration-%02d-of-%02d", p.BatchIndex+1, p.BatchSize)
			uris[i] = migration.FormatURI(p)
		}
		if err := writeQRFiles(qrDir, a.cfg.QRSize, names, uris); err != nil {
			return err
		}
	}
	return printURIs(cmd.OutOrStdout(), a.cfg.Format, payloads)
}

func configCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Manage the configuration file"}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath
			if path == "" {
				path = config.Path()
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			}
			if err := config.Save(path, a.cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}
