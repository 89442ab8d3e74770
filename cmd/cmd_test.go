package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestValidateAddr(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{"port only", ":8080", false},
		{"localhost", "localhost:3400", false},
		{"ipv4", "127.0.0.1:3400", false},
		{"ipv6", "[::1]:3400", false},
		{"hostname", "chat.internal:443", false},
		{"port zero auto-assign", ":0", false},
		{"missing port", "localhost", true},
		{"non-numeric port", "localhost:http", true},
		{"port out of range", "localhost:70000", true},
		{"whitespace host", "bad host:8080", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAddr(tt.addr)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateAddr(%q) error = %v, wantErr %v", tt.addr, err, tt.wantErr)
			}
		})
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	want := []string{"serve", "ingest", "conversations", "version"}
	for _, name := range want {
		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("root command is missing subcommand %q", name)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	defer versionCmd.SetOut(nil)

	if err := versionCmd.RunE(versionCmd, nil); err != nil {
		t.Fatalf("version command error: %v", err)
	}
	if !strings.Contains(out.String(), "simplechat") {
		t.Errorf("version output %q, want it to name the binary", out.String())
	}
	if !strings.Contains(out.String(), AppVersion) {
		t.Errorf("version output missing version %q", AppVersion)
	}
}

func TestIngestCommand_RequiresArgs(t *testing.T) {
	if err := ingestFileCmd.Args(ingestFileCmd, nil); err == nil {
		t.Error("ingest file with no args should fail validation")
	}
	if err := ingestURLCmd.Args(ingestURLCmd, []string{"https://example.com"}); err != nil {
		t.Errorf("ingest url with one arg failed validation: %v", err)
	}
}
