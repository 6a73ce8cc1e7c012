package domain

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadListFromFileAndURL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "custom.txt")
	if err := os.WriteFile(filePath, []byte("file.example.com\n"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("url.example.com\n"))
	}))
	defer server.Close()

	domains, _, err := LoadList(context.Background(), Source{ID: "file", Location: filePath}, logger, 0)
	if err != nil {
		t.Fatalf("LoadList(file) returned error: %v", err)
	}
	if len(domains) != 1 || domains[0] != "file.example.com" {
		t.Errorf("unexpected file domains %v", domains)
	}

	domains, _, err = LoadList(context.Background(), Source{
		ID:       "url",
		Location: server.URL,
		Auth:     AuthConfig{Token: "secret"},
	}, logger, 0)
	if err != nil {
		t.Fatalf("LoadList(url) returned error: %v", err)
	}
	if len(domains) != 1 || domains[0] != "url.example.com" {
		t.Errorf("unexpected url domains %v", domains)
	}
}

func TestLoadListHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, _, err := LoadList(context.Background(), Source{ID: "bad", Location: server.URL}, logger, 0); err == nil {
		t.Fatal("expected error for failing download")
	}
}

func TestLoadListMissingFile(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, _, err := LoadList(context.Background(), Source{Location: filepath.Join(t.TempDir(), "missing.txt")}, logger, 0)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
