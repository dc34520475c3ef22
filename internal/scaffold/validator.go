package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/rollcall/internal/config"
)

// CheckExisting returns an error if dir already holds a rollcall.yml.
func CheckExisting(dir string) error {
	if _, err := os.Stat(filepath.Join(dir, config.DefaultPath)); err == nil {
		return fmt.Errorf("found existing %s\n\nUse 'rollcall init --force' to reinitialize (this will overwrite existing configuration)", config.DefaultPath)
	}
	return nil
}
