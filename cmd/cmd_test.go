package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	contractx "github.com/tanpawarit/chative-crm/crm/contract"
)

func TestUpdateArgs(t *testing.T) {
	t.Parallel()

	fields, err := updateArgs(map[string]string{"size": "60"}, `{"size": 50, "website": "expoya.com"}`)
	if err != nil {
		t.Fatalf("updateArgs() error = %v", err)
	}
	if fields["size"] != "60" || fields["website"] != "expoya.com" {
		t.Fatalf("updateArgs() = %v", fields)
	}

	if _, err := updateArgs(nil, ""); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("updateArgs(empty) error = %v, want ErrValidation", err)
	}
	if _, err := updateArgs(nil, "[1]"); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("updateArgs(array) error = %v, want ErrValidation", err)
	}
}

func TestPrintResult(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := printResult(&buf, contractx.Warning("Task was already deleted")); err != nil {
		t.Fatalf("printResult(warning) error = %v", err)
	}
	if err := printResult(&buf, contractx.NotFound("Lead 'x' not found")); !errors.Is(err, errResultFailed) {
		t.Fatalf("printResult(not found) error = %v, want errResultFailed", err)
	}
	if got := buf.String(); !strings.Contains(got, "already deleted") || !strings.Contains(got, "not found") {
		t.Fatalf("output = %q", got)
	}
}

// Not parallel: runs the shared root command.
func TestFieldsCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"fields", "--system", "zoho", "lead"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	got := out.String()
	for _, want := range []string{"zoho field mapping", "LEAD FIELDS:", "`roof_area`"} {
		if !strings.Contains(got, want) {
			t.Fatalf("fields output missing %q:\n%s", want, got)
		}
	}
}
