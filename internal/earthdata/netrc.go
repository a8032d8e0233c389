// Package earthdata manages NASA Earthdata Login (URS) credentials.
// Credentials are stored in the user's netrc file so other tooling that
// understands netrc (curl, GDAL, wget) authenticates the same way.
package earthdata

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/opengeos/opera-layer-service/internal/granule"
)

// URSHost is the netrc machine name for Earthdata Login.
const URSHost = "urs.earthdata.nasa.gov"

// Credentials is an Earthdata Login username and password pair.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks that both fields are present.
func (c Credentials) Validate() error {
	if c.Username == "" {
		return fmt.Errorf("%w: username is required", granule.ErrValidation)
	}
	if c.Password == "" {
		return fmt.Errorf("%w: password is required", granule.ErrValidation)
	}
	return nil
}

// DefaultNetrcPath returns the platform netrc location (~/.netrc).
func DefaultNetrcPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".netrc"), nil
}

// ReadNetrc returns the Earthdata credentials from the netrc file at path.
// Returns ErrAuth when the file or the URS entry is missing.
func ReadNetrc(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Credentials{}, fmt.Errorf("%w: netrc file %q does not exist", granule.ErrAuth, path)
		}
		return Credentials{}, fmt.Errorf("failed to read netrc file %q: %w", path, err)
	}

	// netrc is a flat token stream; entries are introduced by "machine"
	// (or the catch-all "default").
	tokens := strings.Fields(string(data))
	var creds Credentials
	inTarget := false
	for i := 0; i < len(tokens); i++ {
		switch tokens[i] {
		case "machine":
			if i+1 < len(tokens) {
				inTarget = tokens[i+1] == URSHost
				i++
			}
		case "default":
			inTarget = false
		case "login":
			if inTarget && i+1 < len(tokens) {
				creds.Username = tokens[i+1]
				i++
			}
		case "password":
			if inTarget && i+1 < len(tokens) {
				creds.Password = tokens[i+1]
				i++
			}
		}
	}

	if creds.Username == "" || creds.Password == "" {
		return Credentials{}, fmt.Errorf("%w: no %s entry in netrc file %q", granule.ErrAuth, URSHost, path)
	}
	return creds, nil
}

// WriteNetrc writes the Earthdata credentials to the netrc file at path,
// replacing any existing URS entry and preserving entries for other hosts.
// The file is created with mode 0600 as netrc-aware tools require.
func WriteNetrc(path string, creds Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}

	var lines []string
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read netrc file %q: %w", path, err)
	}
	if err == nil {
		lines = filterNetrcEntry(string(data), URSHost)
	}

	lines = append(lines, fmt.Sprintf("machine %s login %s password %s",
		URSHost, creds.Username, creds.Password))

	content := strings.Join(lines, "\n") + "\n"

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create netrc directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write netrc file %q: %w", path, err)
	}
	// An existing file keeps its old mode through WriteFile.
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("failed to set netrc permissions: %w", err)
	}
	return nil
}

// filterNetrcEntry removes the given machine's entry from the netrc token
// stream and re-emits the remaining entries one per line. Entries may span
// multiple lines (earthaccess writes them that way), so filtering works on
// tokens, not lines.
func filterNetrcEntry(content, host string) []string {
	tokens := strings.Fields(content)

	var lines []string
	var entry []string

	flush := func() {
		if len(entry) == 0 {
			return
		}
		// Skip the entry being replaced.
		if entry[0] == "machine" && len(entry) >= 2 && entry[1] == host {
			entry = nil
			return
		}
		lines = append(lines, strings.Join(entry, " "))
		entry = nil
	}

	for i := 0; i < len(tokens); i++ {
		switch tokens[i] {
		case "machine":
			flush()
			entry = append(entry, tokens[i])
			if i+1 < len(tokens) {
				entry = append(entry, tokens[i+1])
				i++
			}
		case "default":
			flush()
			entry = append(entry, tokens[i])
		default:
			entry = append(entry, tokens[i])
		}
	}
	flush()

	return lines
}
