package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	Token string `yaml:"token"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_KeepsDefaults(t *testing.T) {
	path := writeFile(t, "port: 9090\n")
	s := sample{Name: "agenda", Port: 8080}
	if err := Load(path, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "agenda" || s.Port != 9090 {
		t.Errorf("got %+v", s)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("AGENDA_TEST_TOKEN", "secret")
	t.Setenv("AGENDA_TEST_PORT", "")
	path := writeFile(t, "token: ${AGENDA_TEST_TOKEN}\nport: ${AGENDA_TEST_PORT:-7070}\n")
	var s sample
	if err := Load(path, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Token != "secret" || s.Port != 7070 {
		t.Errorf("got %+v", s)
	}
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "port: 1\nprot: 2\n")
	var s sample
	err := Load(path, &s)
	if err == nil || !strings.Contains(err.Error(), "prot") {
		t.Errorf("expected unknown field error, got %v", err)
	}
}

func TestLoad_Validates(t *testing.T) {
	path := writeFile(t, "name: x\n")
	var s sample
	if err := Load(path, &s); err == nil || !strings.Contains(err.Error(), "validation") {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var s sample
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &s); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadOptional(t *testing.T) {
	s := sample{Port: 8080}
	if err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &s); err != nil {
		t.Errorf("missing file with valid defaults: %v", err)
	}
	var bad sample
	if err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &bad); err == nil {
		t.Error("expected defaults to be validated")
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeFile(t, "")
	s := sample{Port: 1}
	if err := Load(path, &s); err != nil {
		t.Errorf("empty file: %v", err)
	}
}
