// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name
// and the file contents (trimmed) are the value.
//
// Supported key files: dataforseo-login, dataforseo-password.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Key file names looked up by Credentials.
const (
	KeyLogin    = "dataforseo-login"
	KeyPassword = "dataforseo-password"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Credentials extracts the provider login/password pair from a loaded
// secrets map, with flag values taking precedence when non-empty. It
// returns an error if either half of the pair is missing: the provider
// rejects anonymous calls, so there is no point starting a run.
func Credentials(loaded map[string]string, loginFlag, passwordFlag string) (login, password string, err error) {
	login = loginFlag
	if login == "" {
		login = loaded[KeyLogin]
	}
	password = passwordFlag
	if password == "" {
		password = loaded[KeyPassword]
	}

	if login == "" || password == "" {
		return "", "", fmt.Errorf("missing provider credentials: set --login/--password or create .secrets/%s and .secrets/%s", KeyLogin, KeyPassword)
	}
	return login, password, nil
}
