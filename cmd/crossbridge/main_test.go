package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/artpar/crossbridge/core/schema"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		modulesJSON = false
		validateCheckJournal = false
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crossbridge.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const diagnosticsConfig = `
plugins:
  - name: Diagnostics
    loader: builtin.diagnostics
logging:
  level: error
`

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "crossbridge dev") {
		t.Errorf("output = %q", out)
	}
}

func TestValidate(t *testing.T) {
	path := writeConfig(t, diagnosticsConfig)

	out, err := runCLI(t, "validate", "--config", path)
	if err != nil {
		t.Fatalf("validate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Plugins resolvable: 1") || !strings.Contains(out, "Configuration is valid.") {
		t.Errorf("output = %q", out)
	}
}

func TestValidate_UnknownLoader(t *testing.T) {
	path := writeConfig(t, `
plugins:
  - name: Diagnostics
    loader: builtin.diagnostics
  - name: Ads
    loader: ads.v1
  - name: Diagnostics
`)

	out, err := runCLI(t, "validate", "--config", path)
	if err == nil {
		t.Fatalf("validate should fail\n%s", out)
	}
	if !strings.Contains(out, `Ads: unknown loader "ads.v1"`) {
		t.Errorf("missing unknown loader line in %q", out)
	}
	if !strings.Contains(out, "Diagnostics: listed more than once") {
		t.Errorf("missing duplicate line in %q", out)
	}
}

func TestValidate_MissingFile(t *testing.T) {
	_, err := runCLI(t, "validate", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("err = %v", err)
	}
}

func TestModules_JSON(t *testing.T) {
	path := writeConfig(t, diagnosticsConfig)

	out, err := runCLI(t, "modules", "--config", path, "--json")
	if err != nil {
		t.Fatalf("modules: %v", err)
	}

	var views []struct {
		Name       string `json:"name"`
		Operations []struct {
			Name      string `json:"name"`
			Signature string `json:"signature"`
		} `json:"operations"`
	}
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(views) != 1 || views[0].Name != "Diagnostics" {
		t.Fatalf("views = %+v", views)
	}
	if len(views[0].Operations) != 2 || views[0].Operations[0].Signature != "(string)string" {
		t.Errorf("operations = %+v", views[0].Operations)
	}
}

func TestModules_ReportsFailures(t *testing.T) {
	path := writeConfig(t, `
plugins:
  - name: Diagnostics
    loader: builtin.diagnostics
  - name: Ads
    loader: ads.v1
logging:
  level: error
`)

	out, err := runCLI(t, "modules", "--config", path)
	if err != nil {
		t.Fatalf("modules: %v", err)
	}
	if !strings.Contains(out, "Diagnostics") || !strings.Contains(out, "ping(string)string") {
		t.Errorf("table missing Diagnostics row: %q", out)
	}
	if !strings.Contains(out, "Ads (unresolved_loader)") {
		t.Errorf("missing failure line: %q", out)
	}
}

func TestCall_Ping(t *testing.T) {
	path := writeConfig(t, diagnosticsConfig)

	out, err := runCLI(t, "call", "--config", path, "Diagnostics", "ping", "hello")
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !strings.Contains(out, "hello (string)") {
		t.Errorf("missing result in %q", out)
	}
	if !strings.Contains(out, "signal Diagnostics.pong") {
		t.Errorf("missing pong delivery in %q", out)
	}
}

func TestCall_Errors(t *testing.T) {
	path := writeConfig(t, diagnosticsConfig)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown module", []string{"Ads", "show"}, "module not loaded"},
		{"unknown operation", []string{"Diagnostics", "reboot"}, "no operation"},
		{"too many args", []string{"Diagnostics", "uptime", "1"}, "uptime"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"call", "--config", path}, tt.args...)
			_, err := runCLI(t, args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestParseArg(t *testing.T) {
	tests := []struct {
		tag     schema.Tag
		in      string
		want    schema.Tag
		wantErr bool
	}{
		{schema.TagBool, "true", schema.TagBool, false},
		{schema.TagInt32, "42", schema.TagInt32, false},
		{schema.TagInt32, "4294967296", "", true},
		{schema.TagInt64, "4294967296", schema.TagInt64, false},
		{schema.TagFloat64, "1.5", schema.TagFloat64, false},
		{schema.TagString, "hi", schema.TagString, false},
		{schema.TagModule, "Game", schema.TagModule, false},
		{schema.NullableOf(schema.TagInt32), "null", schema.NullableOf(schema.TagInt32), false},
		{schema.NullableOf(schema.TagInt32), "7", schema.TagInt32, false},
		{schema.TagMap, "{}", "", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.tag)+"/"+tt.in, func(t *testing.T) {
			v, err := parseArg(tt.tag, tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && v.Tag() != tt.want {
				t.Errorf("tag = %s, want %s", v.Tag(), tt.want)
			}
		})
	}
}
