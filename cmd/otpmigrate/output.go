package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog/log"

	"otpmigrate/internal/migration"
	"otpmigrate/internal/otpauth"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatCSV   = "csv"
	formatURL   = "url"
)

func validFormat(f string) bool {
	switch f {
	case formatTable, formatJSON, formatCSV, formatURL:
		return true
	}
	return false
}

type accountRow struct {
	Index     int    `json:"index"`
	Issuer    string `json:"issuer,omitempty"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Algorithm string `json:"algorithm"`
	Digits    string `json:"digits"`
	Counter   int64  `json:"counter,omitempty"`
	Secret    string `json:"secret"`
	URL       string `json:"url,omitempty"`
}

type codeRow struct {
	Index   int    `json:"index"`
	Account string `json:"account"`
	Code    string `json:"code"`
	Expires int    `json:"expires_in,omitempty"`
}

func newAccountRow(i int, p migration.OtpParameters) accountRow {
	row := accountRow{
		Index:     i + 1,
		Issuer:    p.Issuer,
		Name:      p.Name,
		Type:      typeName(p.Type),
		Algorithm: p.Algorithm.String(),
		Digits:    strconv.Itoa(int(p.Digits)),
		Counter:   p.Counter,
		Secret:    otpauth.Secret(p),
	}
	if a, err := otpauth.Algorithm(p.Algorithm); err == nil {
		row.Algorithm = a.String()
	}
	if d, err := otpauth.Digits(p.Digits); err == nil {
		row.Digits = d.String()
	}
	if u, err := otpauth.URL(p); err == nil {
		row.URL = u
	} else {
		log.Warn().Err(err).Str("account", otpauth.Label(p)).Msg("account has no otpauth url")
	}
	return row
}

func typeName(t migration.OtpType) string {
	if !t.Known() || t == migration.OtpTypeInvalid {
		return t.String()
	}
	return strings.ToLower(strings.TrimPrefix(t.String(), "OTP_"))
}

func printAccounts(w io.Writer, format string, params []migration.OtpParameters) error {
	rows := make([]accountRow, len(params))
	for i, p := range params {
		rows[i] = newAccountRow(i, p)
	}
	switch format {
	case formatJSON:
		return printJSON(w, rows)
	case formatCSV:
		cw := csv.NewWriter(w)
		cw.Write([]string{"index", "issuer", "name", "type", "algorithm", "digits", "counter", "secret", "url"}) //nolint:errcheck
		for _, r := range rows {
			cw.Write([]string{ //nolint:errcheck
				strconv.Itoa(r.Index), r.Issuer, r.Name, r.Type, r.Algorithm, r.Digits,
				strconv.FormatInt(r.Counter, 10), r.Secret, r.URL,
			})
		}
		cw.Flush()
		return cw.Error()
	case formatURL:
		for _, r := range rows {
			if r.URL != "" {
				fmt.Fprintln(w, r.URL)
			}
		}
		return nil
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tISSUER\tNAME\tTYPE\tALGORITHM\tDIGITS\tCOUNTER\tSECRET")
		for _, r := range rows {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				r.Index, r.Issuer, r.Name, r.Type, r.Algorithm, r.Digits, r.Counter, r.Secret)
		}
		return tw.Flush()
	}
}

func printCodes(w io.Writer, format string, rows []codeRow) error {
	if format == formatJSON {
		return printJSON(w, rows)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tACCOUNT\tCODE\tEXPIRES")
	for _, r := range rows {
		expires := "-"
		if r.Expires > 0 {
			expires = strconv.Itoa(r.Expires) + "s"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.Index, r.Account, r.Code, expires)
	}
	return tw.Flush()
}

// printURIs writes one migration URI per payload. Table and url formats
// print bare lines.
func printURIs(w io.Writer, format string, payloads []migration.MigrationPayload) error {
	uris := make([]string, len(payloads))
	for i, p := range payloads {
		uris[i] = migration.FormatURI(p)
	}
	switch format {
	case formatJSON:
		return printJSON(w, uris)
	case formatCSV:
		cw := csv.NewWriter(w)
		cw.Write([]string{"batch_index", "batch_size", "entries", "uri"}) //nolint:errcheck
		for i, p := range payloads {
			cw.Write([]string{ //nolint:errcheck
				strconv.Itoa(int(p.BatchIndex)), strconv.Itoa(int(p.BatchSize)),
				strconv.Itoa(len(p.OtpParameters)), uris[i],
			})
		}
		cw.Flush()
		return cw.Error()
	default:
		for _, u := range uris {
			fmt.Fprintln(w, u)
		}
		return nil
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeQRFiles renders each content string to dir/<name>.png.
func writeQRFiles(dir string, size int, names, contents []string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	for i, content := range contents {
		path := filepath.Join(dir, names[i]+".png")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return err
		}
		if err := otpauth.WriteQR(f, content, size); err != nil {
			f.Close() //nolint:errcheck
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("qr code written")
	}
	return nil
}

// fileName makes a label safe to use as a file name.
func fileName(i int, label string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.', r == '@':
			return r
		default:
			return '_'
		}
	}, label)
	return fmt.Sprintf("%02d-%s", i+1, clean)
}
