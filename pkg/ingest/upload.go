package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xhad/ragmodes/internal/types"
)

// SaveUpload writes an uploaded PDF into dataDir under its base name and
// returns the written path. An existing file of the same name is replaced.
func SaveUpload(dataDir, name string, r io.Reader) (string, error) {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." {
		return "", fmt.Errorf("invalid upload name: %q", name)
	}
	ext := strings.ToLower(filepath.Ext(base))
	if ext != ".pdf" {
		return "", types.Unsupported(ext)
	}

	if info, err := os.Stat(dataDir); err != nil || !info.IsDir() {
		return "", types.PathNotFound("data directory", dataDir)
	}

	dst := filepath.Join(dataDir, base)
	tmp, err := os.CreateTemp(dataDir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("writing upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("saving upload: %w", err)
	}
	return dst, nil
}
