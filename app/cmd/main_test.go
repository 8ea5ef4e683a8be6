package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigPrintAndSave(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-never-printed")
	t.Setenv("CONFIG_PATH", "")

	var out bytes.Buffer
	root := rootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"config", "print"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "council:")
	assert.Contains(t, out.String(), "chairman: claude")
	assert.NotContains(t, out.String(), "sk-never-printed")

	path := filepath.Join(t.TempDir(), "out.yml")
	root = rootCommand()
	root.SetArgs([]string{"config", "save", path})
	require.NoError(t, root.Execute())
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "port: 8080")
}

func TestAskRequiresQuestion(t *testing.T) {
	root := rootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"ask"})
	assert.Error(t, root.Execute())
}
