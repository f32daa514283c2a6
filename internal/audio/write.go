package audio

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFile writes data to path atomically: bytes land in a temp file in the
// destination directory first and are renamed into place, so a failed write
// never leaves a partial output file behind.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	tmpPath := tmp.Name()

	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmpPath)
		if werr != nil {
			return fmt.Errorf("write output: %w", werr)
		}
		return fmt.Errorf("close output: %w", cerr)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("finalize output: %w", err)
	}

	return nil
}
