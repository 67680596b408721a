package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cryptoguard/cryptoguard/internal/domain"
)

const testKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, strings.Join([]string{
		"nodeInfo:",
		"  fqdn: node.example.com",
		"  privatekey: " + testKey,
		"server:",
		"  databaseDriver: sqlite",
		"  sqlitePath: /tmp/cryptoguard.db",
	}, "\n"))

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.NodeInfo.Attester != "0x2c7536e3605d9c16a7a3d7b1898e529396a65c23" {
		t.Fatalf("unexpected attester %s", cfg.NodeInfo.Attester)
	}
	if cfg.Server.Listen != ":8000" || cfg.Server.RatingBackend != RatingBackendRelational {
		t.Fatalf("defaults not applied: %+v", cfg.Server)
	}

	d := cfg.Domain()
	if d.SessionTTL != 24*time.Hour || d.VoteTally != domain.VoteTallyLatest {
		t.Fatalf("unexpected domain config %+v", d)
	}
}

func TestLoadRejectsBadSettings(t *testing.T) {
	cases := map[string]string{
		"missing key": "nodeInfo:\n  fqdn: a\nserver:\n  databaseDriver: sqlite\n",
		"bad key":     "nodeInfo:\n  privatekey: zz\nserver:\n  databaseDriver: sqlite\n",
		"no dsn":      "nodeInfo:\n  privatekey: " + testKey + "\n",
		"bad tally":   "nodeInfo:\n  privatekey: " + testKey + "\nserver:\n  databaseDriver: sqlite\n  voteTally: sometimes\n",
		"bad backend": "nodeInfo:\n  privatekey: " + testKey + "\nserver:\n  databaseDriver: sqlite\n  ratingBackend: csv\n",
		"bad ttl":     "nodeInfo:\n  privatekey: " + testKey + "\n  sessionTTL: forever\nserver:\n  databaseDriver: sqlite\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
