package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SaveJSON writes v as indented JSON to <outputDir>/<prefix>_<name>_<timestamp>.json
// and returns the file path.
func SaveJSON(v any, outputDir, prefix, name string, at time.Time) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	file := filepath.Join(outputDir, fileName(prefix, name, at))
	fh, err := os.Create(file)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filepath.Base(file), err)
	}
	defer fh.Close()

	enc := json.NewEncoder(fh)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("failed to encode results: %w", err)
	}

	return file, nil
}

// fileName builds <prefix>_<name>_<timestamp>.json with path separators and
// other characters illegal in file names replaced by underscores.
func fileName(prefix, name string, at time.Time) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`/\:*?"<>|`, r) {
			return '_'
		}
		return r
	}, name)
	return fmt.Sprintf("%s_%s_%s.json", prefix, name, at.Format("20060102_150405"))
}
