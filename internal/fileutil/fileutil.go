// Package fileutil writes library artifacts (covers, exports, dumps) to disk.
package fileutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

// FileExists checks if a file exists at the given path
func FileExists(filePath string) bool {
	info, err := os.Stat(filePath)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// WriteFileWithOverwrite atomically writes data to a file, respecting the overwrite flag.
// Returns true if the file was written, false if it was skipped
func WriteFileWithOverwrite(filePath string, data []byte, overwrite bool) (bool, error) {
	if FileExists(filePath) && !overwrite {
		return false, nil
	}

	if err := ensureDir(filepath.Dir(filePath)); err != nil {
		return false, err
	}

	if err := atomic.WriteFile(filePath, bytes.NewReader(data)); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", filePath, err)
	}
	return true, nil
}

// WriteJSONFile writes data as indented JSON.
func WriteJSONFile(data any, filePath string, overwrite bool) (bool, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return false, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	slog.Debug("Writing JSON file", "filename", filePath, "overwrite", overwrite)
	return WriteFileWithOverwrite(filePath, append(jsonData, '\n'), overwrite)
}

// WriteYAMLFile writes data as YAML.
func WriteYAMLFile(data any, filePath string, overwrite bool) (bool, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return false, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return false, fmt.Errorf("failed to marshal YAML: %w", err)
	}

	slog.Debug("Writing YAML file", "filename", filePath, "overwrite", overwrite)
	return WriteFileWithOverwrite(filePath, buf.Bytes(), overwrite)
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
