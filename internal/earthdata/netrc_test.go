package earthdata

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/opengeos/opera-layer-service/internal/granule"
)

func TestWriteNetrc_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".netrc")

	creds := Credentials{Username: "alice", Password: "s3cret"}
	if err := WriteNetrc(path, creds); err != nil {
		t.Fatalf("WriteNetrc() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "machine urs.earthdata.nasa.gov login alice password s3cret\n"
	if string(data) != want {
		t.Errorf("netrc content = %q, want %q", string(data), want)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0o600 {
			t.Errorf("netrc mode = %o, want 0600", info.Mode().Perm())
		}
	}
}

func TestWriteNetrc_ReplacesExistingEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".netrc")

	existing := strings.Join([]string{
		"machine example.com login bob password hunter2",
		"machine urs.earthdata.nasa.gov login old password stale",
	}, "\n") + "\n"
	if err := os.WriteFile(path, []byte(existing), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := WriteNetrc(path, Credentials{Username: "alice", Password: "fresh"}); err != nil {
		t.Fatalf("WriteNetrc() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)

	if !strings.Contains(content, "machine example.com login bob password hunter2") {
		t.Error("other host entry was lost")
	}
	if strings.Contains(content, "stale") {
		t.Error("old URS entry was not replaced")
	}
	if strings.Count(content, "urs.earthdata.nasa.gov") != 1 {
		t.Errorf("expected exactly one URS entry, got:\n%s", content)
	}
}

func TestWriteNetrc_ReplacesMultilineEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".netrc")

	// earthaccess writes one keyword per line.
	existing := strings.Join([]string{
		"machine example.com login bob password hunter2",
		"machine urs.earthdata.nasa.gov",
		"  login old",
		"  password stale",
		"machine other.org login carol password cpw",
	}, "\n") + "\n"
	if err := os.WriteFile(path, []byte(existing), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := WriteNetrc(path, Credentials{Username: "alice", Password: "fresh"}); err != nil {
		t.Fatalf("WriteNetrc() error = %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(string(content), "machine example.com login bob password hunter2") {
		t.Error("example.com entry was lost")
	}
	if !strings.Contains(string(content), "machine other.org login carol password cpw") {
		t.Error("other.org entry was lost")
	}
	// The old entry's keywords must not survive to attach to another host.
	if strings.Contains(string(content), "old") || strings.Contains(string(content), "stale") {
		t.Errorf("stale URS tokens left behind:\n%s", content)
	}

	creds, err := ReadNetrc(path)
	if err != nil {
		t.Fatalf("ReadNetrc() error = %v", err)
	}
	if creds.Username != "alice" || creds.Password != "fresh" {
		t.Errorf("ReadNetrc() = %+v", creds)
	}
}

func TestWriteNetrc_RejectsEmptyCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".netrc")

	err := WriteNetrc(path, Credentials{Username: "alice"})
	if !errors.Is(err, granule.ErrValidation) {
		t.Errorf("WriteNetrc() error = %v, want ErrValidation", err)
	}
	if _, statErr := os.Stat(path); !errors.Is(statErr, os.ErrNotExist) {
		t.Error("invalid credentials should not create the netrc file")
	}
}

func TestReadNetrc(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".netrc")
	content := strings.Join([]string{
		"machine example.com login bob password hunter2",
		"machine urs.earthdata.nasa.gov login alice password s3cret",
	}, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	creds, err := ReadNetrc(path)
	if err != nil {
		t.Fatalf("ReadNetrc() error = %v", err)
	}
	if creds.Username != "alice" || creds.Password != "s3cret" {
		t.Errorf("ReadNetrc() = %+v", creds)
	}
}

func TestReadNetrc_MultilineEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".netrc")
	content := "machine urs.earthdata.nasa.gov\n  login alice\n  password s3cret\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	creds, err := ReadNetrc(path)
	if err != nil {
		t.Fatalf("ReadNetrc() error = %v", err)
	}
	if creds.Username != "alice" || creds.Password != "s3cret" {
		t.Errorf("ReadNetrc() = %+v", creds)
	}
}

func TestReadNetrc_MissingFile(t *testing.T) {
	_, err := ReadNetrc(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, granule.ErrAuth) {
		t.Errorf("ReadNetrc() error = %v, want ErrAuth", err)
	}
}

func TestReadNetrc_NoURSEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".netrc")
	if err := os.WriteFile(path, []byte("machine example.com login bob password x\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := ReadNetrc(path)
	if !errors.Is(err, granule.ErrAuth) {
		t.Errorf("ReadNetrc() error = %v, want ErrAuth", err)
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".netrc")

	want := Credentials{Username: "carol", Password: "pw"}
	if err := WriteNetrc(path, want); err != nil {
		t.Fatalf("WriteNetrc() error = %v", err)
	}

	got, err := ReadNetrc(path)
	if err != nil {
		t.Fatalf("ReadNetrc() error = %v", err)
	}
	if got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}
