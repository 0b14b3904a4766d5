package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out := env.mustRun(t, "config", "validate")
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.cfg.Paths.LibraryDir)
	requireContains(t, out, "builtin")

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting an existing file")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigShowRedactsAPIKey(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Enrichment.APIKey = "secret-key"
	writeTestConfig(t, env.configPath, env.cfg)

	out := env.mustRun(t, "config", "show")
	requireContains(t, out, "[paths]")
	requireContains(t, out, env.cfg.Paths.LibraryDir)
	requireContains(t, out, "<redacted>")
	requireNotContains(t, out, "secret-key")
}

func TestInvalidConfigFailsBeforeCommandRuns(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.WriteFile(env.configPath, []byte("[logging]\nlevel = \"loud\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := env.run(t, "queue", "list"); err == nil {
		t.Fatal("expected invalid config to fail")
	}
	if _, _, err := env.run(t, "config", "validate"); err == nil {
		t.Fatal("expected validate to report the invalid level")
	}
}
