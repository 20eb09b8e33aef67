package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"koalaswap/internal/config"
	"koalaswap/internal/storage"
)

func TestRootCommandsRegistered(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "pool-info", "quote-swap", "position-info", "journal-export"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("command %s not registered: %v", name, err)
		}
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := newLogger("verbose"); err == nil {
		t.Fatalf("expected level error")
	}
	logger, err := newLogger("debug")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if !logger.Core().Enabled(zap.DebugLevel) {
		t.Fatalf("debug level should be enabled")
	}
}

func TestBuildGatewayRequiresDefaultRPC(t *testing.T) {
	cfg := config.Config{
		DefaultNetwork: "koala",
		Networks:       config.DefaultNetworks(),
	}
	_, err := buildGateway(context.Background(), cfg, nil, zap.NewNop())
	if err == nil {
		t.Fatalf("expected missing rpc error")
	}
}

func TestOpenJournalPrefersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	journal, err := openJournal(context.Background(), config.JournalConfig{Path: path}, zap.NewNop())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	if _, ok := journal.(*storage.JsonlStorage); !ok {
		t.Fatalf("expected jsonl journal, got %T", journal)
	}

	journal, err = openJournal(context.Background(), config.JournalConfig{}, zap.NewNop())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	if _, ok := journal.(storage.Nop); !ok {
		t.Fatalf("expected nop journal, got %T", journal)
	}
}

func TestJournalExportRequiresDSN(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("KOALA_JOURNAL_PG_DSN", "")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"journal-export", "--in", filepath.Join(dir, "journal.jsonl")})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected missing dsn error")
	}
}

func TestPrintJSONIndents(t *testing.T) {
	var out bytes.Buffer
	if err := printJSON(&out, map[string]string{"status": "ok"}); err != nil {
		t.Fatalf("print: %v", err)
	}
	if out.String() != "{\n  \"status\": \"ok\"\n}\n" {
		t.Fatalf("output mismatch: %q", out.String())
	}
}
