package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ValidConfig(t *testing.T) {
	cfg, err := Parse([]byte(`
base_url: https://api.animomart.ph/v1
token: secret-token
owner_id: student-42
debounce_ms: 150
wishlist_capacity: 10
currency: PHP
`))
	require.NoError(t, err)

	assert.Equal(t, "https://api.animomart.ph/v1", cfg.BaseURL)
	assert.Equal(t, "secret-token", cfg.Token)
	assert.Equal(t, "student-42", cfg.OwnerID)
	assert.Equal(t, 150*time.Millisecond, cfg.DebounceWindow())
	assert.Equal(t, 10, cfg.WishlistCapacity)
}

func TestParse_DefaultsFillOmittedFields(t *testing.T) {
	cfg, err := Parse([]byte(`base_url: http://localhost:4000/api`))
	require.NoError(t, err)

	assert.Equal(t, DefaultDebounceMS, cfg.DebounceMS)
	assert.Equal(t, DefaultWishlistCapacity, cfg.WishlistCapacity)
	assert.Equal(t, DefaultCurrency, cfg.Currency)
	assert.NotEmpty(t, cfg.SelectionDB)
}

func TestParse_SchemaRejections(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing base_url", `token: abc`},
		{"non-http base_url", `base_url: ftp://example.com`},
		{"debounce out of range", "base_url: http://x.test\ndebounce_ms: 60000"},
		{"zero wishlist capacity", "base_url: http://x.test\nwishlist_capacity: 0"},
		{"lowercase currency", "base_url: http://x.test\ncurrency: php"},
		{"unknown field", "base_url: http://x.test\nbogus: 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse([]byte(`base_url: [unterminated`))
	require.Error(t, err)
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path,
		[]byte("base_url: https://api.animomart.ph/v1\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.animomart.ph/v1", cfg.BaseURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestDefault_HasUsableValues(t *testing.T) {
	cfg := Default()
	assert.NotEmpty(t, cfg.BaseURL)
	assert.Equal(t, DefaultCurrency, cfg.Currency)
	assert.Equal(t, DefaultDebounceMS, cfg.DebounceMS)
}
