package ringslog

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Name != "RingsLog" {
		t.Errorf("Name = %q, want RingsLog", cfg.Name)
	}
	if cfg.FormSessionTTL != time.Hour {
		t.Errorf("FormSessionTTL = %v, want 1h", cfg.FormSessionTTL)
	}
	if cfg.Storage != "local" {
		t.Errorf("Storage = %q, want local", cfg.Storage)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ringslog.yml")
	body := "name: Reading Log\naddr: \":8080\"\nreview_cache_ttl: 30s\ns3:\n  bucket: covers\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RINGSLOG_SESSION_SECRET", "shh")
	t.Setenv("RINGSLOG_S3_REGION", "ap-northeast-1")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Name != "Reading Log" || cfg.Addr != ":8080" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.ReviewCacheTTL != 30*time.Second {
		t.Errorf("ReviewCacheTTL = %v, want 30s", cfg.ReviewCacheTTL)
	}
	if cfg.SessionSecret != "shh" {
		t.Errorf("SessionSecret = %q, want env value", cfg.SessionSecret)
	}
	if cfg.S3.Bucket != "covers" || cfg.S3.Region != "ap-northeast-1" {
		t.Errorf("S3 = %+v", cfg.S3)
	}
}

func TestLoadConfigMissingFileIsFine(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml")); err != nil {
		t.Fatalf("missing config file should not fail: %v", err)
	}
}
