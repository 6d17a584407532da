package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"otpmigrate/internal/config"
	"otpmigrate/internal/migration"
	"otpmigrate/internal/otpauth"
	"otpmigrate/internal/vault"
)

const envPassphrase = "OTPMIGRATE_PASSPHRASE"

var errNoInput = errors.New("no input")

// app holds state shared by the subcommands of one invocation.
type app struct {
	configPath string
	vaultPath  string
	logLevel   string
	format     string

	cfg   config.Config
	stdin *bufio.Reader
}

func errUnknown(what, value string) error {
	return fmt.Errorf("unknown %s %q", what, value)
}

func (a *app) reader(cmd *cobra.Command) *bufio.Reader {
	if a.stdin == nil {
		a.stdin = bufio.NewReader(cmd.InOrStdin())
	}
	return a.stdin
}

// inputs expands args into non-empty lines. "@path" reads a file, "-" reads
// stdin, anything else is taken literally. No args means stdin.
func (a *app) inputs(cmd *cobra.Command, args []string) ([]string, error) {
	if len(args) == 0 {
		args = []string{"-"}
	}
	var lines []string
	for _, arg := range args {
		var text string
		switch {
		case arg == "-":
			data, err := io.ReadAll(a.reader(cmd))
			if err != nil {
				return nil, fmt.Errorf("read stdin: %w", err)
			}
			text = string(data)
		case strings.HasPrefix(arg, "@"):
			data, err := os.ReadFile(arg[1:])
			if err != nil {
				return nil, err
			}
			text = string(data)
		default:
			text = arg
		}
		for _, line := range strings.Split(text, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, line)
			}
		}
	}
	if len(lines) == 0 {
		return nil, errNoInput
	}
	return lines, nil
}

// payloads parses every input line. Migration URIs are decoded as-is; any
// other line must be an otpauth:// URL and becomes a one-entry payload.
func (a *app) payloads(cmd *cobra.Command, args []string) ([]migration.MigrationPayload, error) {
	lines, err := a.inputs(cmd, args)
	if err != nil {
		return nil, err
	}
	out := make([]migration.MigrationPayload, 0, len(lines))
	for i, line := range lines {
		if !migration.IsURI(line) {
			op, err := otpauth.ParametersFromURL(line)
			if err != nil {
				return nil, fmt.Errorf("input %d: not a migration uri: %w", i+1, err)
			}
			out = append(out, migration.MigrationPayload{OtpParameters: []migration.OtpParameters{op}})
			continue
		}
		p, err := migration.ParseURI(line)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i+1, err)
		}
		log.Debug().
			Int("entries", len(p.OtpParameters)).
			Int32("batch_index", p.BatchIndex).
			Int32("batch_size", p.BatchSize).
			Msg("payload decoded")
		out = append(out, p)
	}
	return out, nil
}

// passphrase comes from the environment or a prompt on stdin.
func (a *app) passphrase(cmd *cobra.Command) (string, error) {
	if p := os.Getenv(envPassphrase); p != "" {
		return p, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Vault passphrase: ")
	line, err := a.reader(cmd).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *app) openVault(cmd *cobra.Command) (*vault.Vault, error) {
	pass, err := a.passphrase(cmd)
	if err != nil {
		return nil, err
	}
	return vault.Open(a.cfg.VaultPath, pass)
}

// accountIndex converts a 1-based position from the list output.
func accountIndex(v *vault.Vault, raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid account number %q", raw)
	}
	if n < 1 || n > len(v.Accounts()) {
		return 0, fmt.Errorf("%w: %d", vault.ErrNoSuchAccount, n)
	}
	return n - 1, nil
}

// collect flattens payloads, reassembling batches when validate is set.
func collect(payloads []migration.MigrationPayload, validate bool) ([]migration.OtpParameters, error) {
	if validate {
		return migration.Merge(payloads)
	}
	var out []migration.OtpParameters
	for _, p := range payloads {
		out = append(out, p.OtpParameters...)
	}
	return out, nil
}

func keyURLs(params []migration.OtpParameters) ([]string, error) {
	out := make([]string, 0, len(params))
	for _, p := range params {
		u, err := otpauth.URL(p)
		if err != nil {
			return nil, fmt.Errorf("account %q: %w", otpauth.Label(p), err)
		}
		out = append(out, u)
	}
	return out, nil
}
