package cmd

import (
	"slices"
	"testing"
)

func TestStatements(t *testing.T) {
	in := `-- header comment
CREATE DATABASE IF NOT EXISTS leadsync;

CREATE TABLE t
(
    a String -- trailing
);
-- only a comment;
`
	got := statements(in)
	want := []string{
		"CREATE DATABASE IF NOT EXISTS leadsync",
		"CREATE TABLE t\n(\n    a String -- trailing\n)",
	}
	if !slices.Equal(got, want) {
		t.Errorf("statements() = %q, want %q", got, want)
	}
}
