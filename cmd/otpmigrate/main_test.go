package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"otpmigrate/internal/migration"
)

const (
	aliceURL = "otpauth://totp/Example:alice@example.com?algorithm=SHA1&digits=6&issuer=Example&period=30&secret=GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"
	bobURL   = "otpauth://hotp/bob?counter=3&digits=6&secret=VK54Y"
)

type harness struct {
	t      *testing.T
	vault  string
	config string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv(envPassphrase, "test passphrase")
	for _, k := range []string{"OTPMIGRATE_VAULT", "OTPMIGRATE_LOG_LEVEL", "OTPMIGRATE_FORMAT", "OTPMIGRATE_QR_SIZE", "OTPMIGRATE_BATCH_SIZE"} {
		t.Setenv(k, "")
	}
	return &harness{
		t:      t,
		vault:  filepath.Join(dir, "vault.bin"),
		config: filepath.Join(dir, "missing.yaml"),
	}
}

func (h *harness) run(stdin string, args ...string) string {
	h.t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(append([]string{"--config", h.config, "--vault", h.vault, "--log-level", "error"}, args...))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	if err := cmd.Execute(); err != nil {
		h.t.Fatalf("%v: %v\nstderr: %s", args, err, errOut.String())
	}
	return out.String()
}

func (h *harness) fail(args ...string) error {
	h.t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(append([]string{"--config", h.config, "--vault", h.vault, "--log-level", "error"}, args...))
	cmd.SetIn(strings.NewReader(""))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	if err == nil {
		h.t.Fatalf("%v: expected error", args)
	}
	return err
}

func lines(s string) []string {
	return strings.Fields(strings.TrimSpace(s))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	h := newHarness(t)
	uris := lines(h.run(aliceURL+"\n"+bobURL+"\n", "encode", "--batch-size", "1", "-"))
	if len(uris) != 2 {
		t.Fatalf("expected 2 uris, got %q", uris)
	}
	for _, u := range uris {
		if !migration.IsURI(u) {
			t.Fatalf("not a migration uri: %q", u)
		}
	}

	out := h.run("", append([]string{"--format", "json", "decode", "--validate"}, uris[1], uris[0])...)
	var rows []accountRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("unmarshal %q: %v", out, err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d", len(rows))
	}
	if rows[0].Name != "alice@example.com" || rows[0].Issuer != "Example" || rows[0].Type != "totp" {
		t.Fatalf("first row: %+v", rows[0])
	}
	if rows[1].Name != "bob" || rows[1].Type != "hotp" || rows[1].Counter != 3 || rows[1].Secret != "VK54Y" {
		t.Fatalf("second row: %+v", rows[1])
	}

	urls := lines(h.run("", append([]string{"--format", "url", "decode"}, uris...)...))
	if len(urls) != 2 || !strings.HasPrefix(urls[0], "otpauth://totp/") {
		t.Fatalf("urls: %q", urls)
	}
}

func TestDecodeValidateRejectsPartialExport(t *testing.T) {
	h := newHarness(t)
	uris := lines(h.run("", "encode", "--batch-size", "1", aliceURL, bobURL))
	h.fail("decode", "--validate", uris[0])
}

func TestDecodeFromFileWithQR(t *testing.T) {
	h := newHarness(t)
	uri := strings.TrimSpace(h.run("", "encode", aliceURL))
	dir := t.TempDir()
	file := filepath.Join(dir, "export.txt")
	if err := os.WriteFile(file, []byte(uri+"\n\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	qrDir := filepath.Join(dir, "qr")
	out := h.run("", "--format", "csv", "decode", "--qr-dir", qrDir, "@"+file)
	if !strings.HasPrefix(out, "index,issuer,name,") || !strings.Contains(out, "alice@example.com") {
		t.Fatalf("csv output: %q", out)
	}
	entries, err := os.ReadDir(qrDir)
	if err != nil {
		t.Fatalf("read qr dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "01-Example_alice@example.com.png" {
		t.Fatalf("qr files: %v", entries)
	}
}

func TestVaultCommands(t *testing.T) {
	h := newHarness(t)
	uri := strings.TrimSpace(h.run("", "encode", aliceURL, bobURL))

	if out := h.run("", "import", uri); !strings.Contains(out, "Imported 2 of 2") {
		t.Fatalf("import: %q", out)
	}
	if out := h.run("", "import", uri); !strings.Contains(out, "Imported 0 of 2") {
		t.Fatalf("second import: %q", out)
	}

	table := h.run("", "list")
	if !strings.Contains(table, "alice@example.com") || !strings.Contains(table, "bob") {
		t.Fatalf("list: %q", table)
	}

	h.run("", "rename", "2", "robert", "Acme")
	var codes []codeRow
	if err := json.Unmarshal([]byte(h.run("", "--format", "json", "code", "acme")), &codes); err != nil {
		t.Fatalf("code json: %v", err)
	}
	if len(codes) != 1 || codes[0].Account != "Acme:robert" || len(codes[0].Code) != 6 {
		t.Fatalf("codes: %+v", codes)
	}

	h.run("", "remove", "1")
	exported := strings.TrimSpace(h.run("", "export"))
	p, err := migration.ParseURI(exported)
	if err != nil {
		t.Fatalf("parse export: %v", err)
	}
	got := make([]string, 0, len(p.OtpParameters))
	for _, op := range p.OtpParameters {
		got = append(got, op.Issuer+":"+op.Name)
	}
	if diff := cmp.Diff([]string{"Acme:robert"}, got); diff != "" {
		t.Fatalf("export mismatch (-want +got):\n%s", diff)
	}

	h.fail("remove", "7")
	h.fail("remove", "1abc")
	h.fail("code", "nobody")
}

func TestPassphrasePrompt(t *testing.T) {
	h := newHarness(t)
	t.Setenv(envPassphrase, "")
	uri := strings.TrimSpace(h.run("", "encode", aliceURL))
	h.run("secret words\n", "import", uri)
	if out := h.run("secret words\n", "list"); !strings.Contains(out, "alice@example.com") {
		t.Fatalf("list: %q", out)
	}
	err := h.fail("list")
	if !strings.Contains(err.Error(), "empty passphrase") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDecodeAcceptsOtpauthURL(t *testing.T) {
	h := newHarness(t)
	var rows []accountRow
	out := h.run("", "--format", "json", "decode", aliceURL)
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("unmarshal %q: %v", out, err)
	}
	if len(rows) != 1 || rows[0].Name != "alice@example.com" || rows[0].Issuer != "Example" {
		t.Fatalf("rows: %+v", rows)
	}
	h.fail("decode", "not a url")
}

func TestURLFormatRoundTripKeepsColons(t *testing.T) {
	h := newHarness(t)
	const colonURL = "otpauth://totp/Foo:Bar:a:b?issuer=Foo%3ABar&secret=AEBA"
	uri := strings.TrimSpace(h.run("", "encode", colonURL))
	urls := lines(h.run("", "--format", "url", "decode", uri))
	if len(urls) != 1 {
		t.Fatalf("urls: %q", urls)
	}
	again := strings.TrimSpace(h.run("", "encode", urls[0]))
	p, err := migration.ParseURI(again)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := p.OtpParameters[0]; got.Name != "a:b" || got.Issuer != "Foo:Bar" {
		t.Fatalf("name=%q issuer=%q", got.Name, got.Issuer)
	}
}

func TestConfigInit(t *testing.T) {
	h := newHarness(t)
	h.config = filepath.Join(t.TempDir(), "otpmigrate", "config.yaml")
	if out := h.run("", "--format", "json", "config", "init"); !strings.Contains(out, h.config) {
		t.Fatalf("config init: %q", out)
	}
	data, err := os.ReadFile(h.config)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(data), "format: json") || !strings.Contains(string(data), "vault_path: "+h.vault) {
		t.Fatalf("config file: %s", data)
	}
	h.fail("config", "init")
	h.run("", "config", "init", "--force")
}

func TestRejectsUnknownFormat(t *testing.T) {
	h := newHarness(t)
	h.fail("--format", "xml", "list")
}
