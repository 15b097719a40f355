package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// WriteResult describes the outcome of WriteFile.
type WriteResult int

const (
	// WriteCreated means a new file was written.
	WriteCreated WriteResult = iota
	// WriteReplaced means an existing file was overwritten.
	WriteReplaced
	// WriteExists means a file was already present and was left alone.
	WriteExists
)

const fileHeader = "# tally configuration. Unset keys fall back to built-in defaults.\n\n"

// DefaultPath returns the config file location used by Load.
func DefaultPath() string {
	return defaultConfigPath()
}

// WriteFile saves cfg as TOML at path. An existing file is kept unless
// force is set. The write goes through a temp file and a rename so a
// concurrent reader never sees a partial file.
func WriteFile(path string, cfg Config, force bool) (WriteResult, error) {
	existing, statErr := os.Stat(path)
	if statErr == nil && !force {
		return WriteExists, nil
	}

	if err := validate(&cfg); err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	buf.WriteString(fileHeader)
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return 0, fmt.Errorf("encoding config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return 0, fmt.Errorf("permission denied creating directory %s", dir)
		}
		return 0, fmt.Errorf("creating directory %s: %w", dir, err)
	}

	mode := fs.FileMode(0o644)
	if statErr == nil {
		mode = existing.Mode().Perm()
	}
	if err := writeAtomic(path, buf.Bytes(), mode); err != nil {
		return 0, err
	}
	if statErr == nil {
		return WriteReplaced, nil
	}
	return WriteCreated, nil
}

func writeAtomic(path string, data []byte, mode fs.FileMode) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".config-*.toml.tmp")
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("permission denied writing to %s", dir)
		}
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	_ = os.Chmod(tmpPath, mode)

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file to %s: %w", path, err)
	}
	tmpPath = ""
	return nil
}
