package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/morezero/capability-facade/pkg/capability"
)

const mainTestPrefix = "cmd/facade:main_test"

func TestUsage_ContainsCommands(t *testing.T) {
	required := []string{"serve", "migrate up", "migrate status", "providers", "DATABASE_URL", "PROVIDER_LOCATIONS"}
	for _, word := range required {
		if !strings.Contains(usage, word) {
			t.Errorf("%s - usage should contain %q", mainTestPrefix, word)
		}
	}
}

func TestRunProviders(t *testing.T) {
	for _, env := range []string{"PROVIDER_LOCATIONS", "DATABASE_URL", "COMMS_ENABLED"} {
		os.Unsetenv(env)
	}
	path := filepath.Join(t.TempDir(), "providers.yaml")
	if err := os.WriteFile(path, []byte("name: cli\nproviders:\n  - logpoll\n  - stateful@^1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := runProviders(context.Background(), []string{path}, &buf); err != nil {
		t.Fatalf("%s - runProviders: %v", mainTestPrefix, err)
	}

	var got []capability.ClientDescriptor
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("%s - output is not YAML: %v\n%s", mainTestPrefix, err, buf.String())
	}
	if len(got) != 2 || got[0].Capability != "logpoll" || got[1].Capability != "stateful" {
		t.Fatalf("%s - descriptors = %+v", mainTestPrefix, got)
	}
	if len(got[0].Operations) != 2 || got[0].Operations[0] != "retrieveLogEvents(int64,int)" {
		t.Errorf("%s - logpoll operations = %v", mainTestPrefix, got[0].Operations)
	}
	if len(got[1].Notifications) != 1 || got[1].Notifications[0] != "state" {
		t.Errorf("%s - stateful notifications = %v", mainTestPrefix, got[1].Notifications)
	}

	if err := runProviders(context.Background(), []string{filepath.Join(t.TempDir(), "none.json")}, &buf); err == nil {
		t.Errorf("%s - expected error for a missing document", mainTestPrefix)
	}
}
