package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dyluth/rollcall/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name      string
		force     bool
		setupFunc func(string)
		wantErr   bool
	}{
		{
			name:      "fresh initialization",
			force:     false,
			setupFunc: func(dir string) {},
		},
		{
			name:  "force initialization replaces existing file",
			force: true,
			setupFunc: func(dir string) {
				os.WriteFile(filepath.Join(dir, config.DefaultPath), []byte("old content"), 0644)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setupFunc(dir)

			created, err := Initialize(dir, tt.force)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, []string{filepath.Join(dir, config.DefaultPath)}, created)

			cfg, err := config.Load(created[0])
			require.NoError(t, err)
			assert.Equal(t, "default", cfg.Namespace)
			assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
			assert.Empty(t, cfg.Identity.UserID)
			assert.True(t, cfg.HealthEnabled())
		})
	}
}

func TestTemplateIsEmbedded(t *testing.T) {
	files, err := getTemplateFiles("somewhere")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join("somewhere", config.DefaultPath), files[0].Path)
	assert.Contains(t, string(files[0].Content), `version: "1.0"`)
	assert.Equal(t, os.FileMode(0600), files[0].Permissions)
}
