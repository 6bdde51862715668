package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type sampleConfig struct {
	APIURL  string        `envconfig:"API_URL" required:"true"`
	Timeout time.Duration `split_words:"true" default:"10s"`
	Limit   int           `split_words:"true" default:"200"`
}

// Not parallel: the tests mutate the process environment.

func TestNewReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crm.env")
	content := "CFGTEST_API_URL=https://crm.example.com\nCFGTEST_TIMEOUT=3s\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() {
		UseEnvFile("")
		os.Unsetenv("CFGTEST_API_URL")
		os.Unsetenv("CFGTEST_TIMEOUT")
	})

	UseEnvFile(path)
	conf, err := New[sampleConfig]("CFGTEST")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if conf.APIURL != "https://crm.example.com" || conf.Timeout != 3*time.Second || conf.Limit != 200 {
		t.Fatalf("New() = %+v", conf)
	}
}

func TestNewKeepsExistingEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crm.env")
	if err := os.WriteFile(path, []byte("CFGKEEP_API_URL=https://from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() { UseEnvFile("") })
	t.Setenv("CFGKEEP_API_URL", "https://from-env")

	UseEnvFile(path)
	conf, err := New[sampleConfig]("CFGKEEP")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if conf.APIURL != "https://from-env" {
		t.Fatalf("APIURL = %q, want environment value", conf.APIURL)
	}
}

func TestNewMissingRequired(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	if _, err := New[sampleConfig]("CFGMISSING"); err == nil {
		t.Fatal("New() error = nil, want missing env file error")
	}
}
