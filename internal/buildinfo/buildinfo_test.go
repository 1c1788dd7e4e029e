package buildinfo

import "testing"

func TestString(t *testing.T) {
	oldVersion := Version
	oldCommit := Commit
	oldDate := Date
	Version = "1.4.0"
	Commit = "deadbeef"
	Date = "2026-08-19"
	defer func() {
		Version = oldVersion
		Commit = oldCommit
		Date = oldDate
	}()

	got := String()
	want := "dbaasd 1.4.0 (commit deadbeef, built 2026-08-19)"
	if got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
