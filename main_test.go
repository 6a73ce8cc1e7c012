package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nxenhance/internal/testutil"
)

func TestRunBulkAdd(t *testing.T) {
	stub := testutil.StartAPIStub(t, "abc123")
	stub.SetList("denylist", "old.example.com")

	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "nxenhance.log")
	configFile := filepath.Join(tmpDir, "nxenhance.toml")
	config := fmt.Sprintf(`[api]
base_url = %q
profile = "abc123"
api_key = "secret"

[bulk]
item_delay = "1ms"

[settings]
database = %q

[logging]
level = "debug"
file = %q
`, stub.URL, filepath.Join(tmpDir, "settings.db"), logFile)
	if err := os.WriteFile(configFile, []byte(config), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NXENHANCE_CONFIG", configFile)

	args := os.Args
	t.Cleanup(func() { os.Args = args })

	tests := []struct {
		name     string
		args     []string
		wantCode int
	}{
		{"version", []string{"version"}, 0},
		{"add new and existing", []string{"add", "deny", "new.example.com", "old.example.com"}, 0},
		{"unknown list", []string{"add", "rewrites", "x.example.com"}, 1},
		{"unknown command", []string{"resolve"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = append([]string{"nxenhance"}, tt.args...)
			if code := run(); code != tt.wantCode {
				t.Errorf("run() = %d, want %d", code, tt.wantCode)
			}
		})
	}

	ids := stub.ListIDs("denylist")
	if strings.Join(ids, ",") != "old.example.com,new.example.com" {
		t.Errorf("denylist = %v", ids)
	}

	logContent, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	t.Log(string(logContent))
	if !strings.Contains(string(logContent), "bulk add finished") {
		t.Error("Expected 'bulk add finished' message in logs but found none")
	}
	if strings.Count(string(logContent), "failed to add domain") != 0 {
		t.Error("Expected no failed additions")
	}
}
