package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestOutput_TableUppercasesHeaders(t *testing.T) {
	var out, errOut bytes.Buffer
	o := NewOutputTo(false, &out, &errOut)

	o.Table([]string{"id", "name"}, [][]string{{"sales", "Отдел продаж"}})

	got := out.String()
	if !strings.Contains(got, "ID") || !strings.Contains(got, "NAME") {
		t.Errorf("headers not uppercased: %q", got)
	}
	if !strings.Contains(got, "sales") {
		t.Errorf("row missing: %q", got)
	}
}

func TestOutput_TableEmptyRows(t *testing.T) {
	var out, errOut bytes.Buffer
	o := NewOutputTo(false, &out, &errOut)

	o.Table([]string{"id"}, nil)

	if out.Len() != 0 {
		t.Errorf("stdout should stay clean for empty result: %q", out.String())
	}
	if !strings.Contains(errOut.String(), "(empty)") {
		t.Errorf("expected (empty) notice, got %q", errOut.String())
	}
}

func TestOutput_PrintJSONMode(t *testing.T) {
	var out, errOut bytes.Buffer
	o := NewOutputTo(true, &out, &errOut)

	o.Print([]string{"id"}, [][]string{{"x"}}, map[string]string{"id": "x"})

	got := out.String()
	if !strings.Contains(got, `"id": "x"`) {
		t.Errorf("expected indented json, got %q", got)
	}
	if strings.Contains(got, "ID\t") {
		t.Errorf("json mode must not render a table: %q", got)
	}
}
