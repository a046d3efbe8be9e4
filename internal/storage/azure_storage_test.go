package storage

import (
	"context"
	"encoding/base64"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAzureArchiver_RejectsMalformedKey(t *testing.T) {
	_, err := NewAzureArchiver("labels", "not base64!", "originals")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "azure credential")
}

func TestAzureArchiver_MissingFile(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef"))
	archiver, err := NewAzureArchiver("labels", key, "originals")
	require.NoError(t, err)

	_, err = archiver.Archive(context.Background(), filepath.Join(t.TempDir(), "missing.png"), "image/png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open ")
}
