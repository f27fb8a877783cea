package appconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jgaa/deldupes/internal/appconfig"
)

func Test_Load_With_No_Files_Returns_Defaults(t *testing.T) {
	t.Parallel()

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	dir := t.TempDir()

	cfg, err := appconfig.Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := appconfig.Default()
	want.BatchMaxInterval = cfg.BatchMaxInterval // derived field; only Workers, Paranoid and PrefixThresholdBytes are compared below

	if cfg.Workers != want.Workers || cfg.Paranoid != want.Paranoid || cfg.PrefixThresholdBytes != want.PrefixThresholdBytes {
		t.Fatalf("cfg=%+v, want defaults %+v", cfg, want)
	}
}

func Test_Load_Project_File_Overrides_Defaults(t *testing.T) {
	t.Parallel()

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	dir := t.TempDir()

	content := `{
		// a comment HuJSON must tolerate
		"workers": 7,
		"paranoid": true,
	}`

	if err := os.WriteFile(filepath.Join(dir, "deldupes.json"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := appconfig.Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Workers != 7 {
		t.Fatalf("workers=%d, want 7", cfg.Workers)
	}

	if !cfg.Paranoid {
		t.Fatalf("paranoid=false, want true")
	}

	if cfg.PrefixThresholdBytes != appconfig.Default().PrefixThresholdBytes {
		t.Fatalf("prefix threshold changed unexpectedly: %d", cfg.PrefixThresholdBytes)
	}
}

func Test_Load_Project_Overrides_Global(t *testing.T) {
	t.Parallel()

	globalDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", globalDir)

	if err := os.MkdirAll(filepath.Join(globalDir, "deldupes"), 0o755); err != nil {
		t.Fatalf("mkdir global: %v", err)
	}

	if err := os.WriteFile(filepath.Join(globalDir, "deldupes", "config.json"), []byte(`{"workers": 2}`), 0o644); err != nil {
		t.Fatalf("write global: %v", err)
	}

	projectDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(projectDir, "deldupes.json"), []byte(`{"workers": 9}`), 0o644); err != nil {
		t.Fatalf("write project: %v", err)
	}

	cfg, err := appconfig.Load(projectDir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Workers != 9 {
		t.Fatalf("workers=%d, want 9 (project should win over global)", cfg.Workers)
	}
}

func Test_ApplyCLIOverrides_Wins_Over_File_Layers(t *testing.T) {
	t.Parallel()

	cfg := appconfig.Default()
	cfg.Workers = 3

	cfg = appconfig.ApplyCLIOverrides(cfg, 16, false, false, 0)

	if cfg.Workers != 16 {
		t.Fatalf("workers=%d, want 16", cfg.Workers)
	}
}

func Test_ApplyCLIOverrides_Paranoid_Only_Applied_When_Explicitly_Set(t *testing.T) {
	t.Parallel()

	cfg := appconfig.Default()
	cfg.Paranoid = true

	cfg = appconfig.ApplyCLIOverrides(cfg, 0, false, false, 0)

	if !cfg.Paranoid {
		t.Fatalf("paranoid flipped to false despite paranoidSet=false")
	}
}
