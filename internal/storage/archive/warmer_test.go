package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestWarm_HydratesMissingFiles(t *testing.T) {
	cold := t.TempDir()
	fs, _ := NewLocalFS(cold)
	ctx := context.Background()

	fs.Write(ctx, "SPY_2023-01-01_2023-06-01.json", []byte("[]"))
	fs.Write(ctx, "manifest.json", []byte("{}"))
	fs.Write(ctx, "README.md", []byte("not a candle file"))

	cacheDir := filepath.Join(t.TempDir(), "historical_cache")
	hydrated, err := Warm(ctx, fs, cacheDir, nil)
	if err != nil {
		t.Fatalf("Warm: %v", err)
	}
	if hydrated != 2 {
		t.Errorf("expected 2 hydrated files, got %d", hydrated)
	}

	if _, err := os.Stat(filepath.Join(cacheDir, "SPY_2023-01-01_2023-06-01.json")); err != nil {
		t.Errorf("expected candle file in cache: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cacheDir, "README.md")); !os.IsNotExist(err) {
		t.Error("expected non-json file to be skipped")
	}
}

func TestWarm_LocalFilesWin(t *testing.T) {
	cold := t.TempDir()
	fs, _ := NewLocalFS(cold)
	ctx := context.Background()

	fs.Write(ctx, "SPY_2023-01-01_2023-06-01.json", []byte(`["archive"]`))

	cacheDir := t.TempDir()
	localPath := filepath.Join(cacheDir, "SPY_2023-01-01_2023-06-01.json")
	if err := os.WriteFile(localPath, []byte(`["local"]`), 0o644); err != nil {
		t.Fatal(err)
	}

	hydrated, err := Warm(ctx, fs, cacheDir, nil)
	if err != nil {
		t.Fatalf("Warm: %v", err)
	}
	if hydrated != 0 {
		t.Errorf("expected no files hydrated, got %d", hydrated)
	}

	data, _ := os.ReadFile(localPath)
	if string(data) != `["local"]` {
		t.Errorf("local file was overwritten: %s", data)
	}
}

func TestWarm_Idempotent(t *testing.T) {
	cold := t.TempDir()
	fs, _ := NewLocalFS(cold)
	ctx := context.Background()

	fs.Write(ctx, "QQQ_2023-01-01_2023-06-01.json", []byte("[]"))

	cacheDir := t.TempDir()
	first, err := Warm(ctx, fs, cacheDir, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Warm(ctx, fs, cacheDir, nil)
	if err != nil {
		t.Fatal(err)
	}

	if first != 1 || second != 0 {
		t.Errorf("expected 1 then 0 hydrated, got %d then %d", first, second)
	}
}
