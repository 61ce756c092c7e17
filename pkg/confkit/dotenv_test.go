package confkit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDotenvFilesExplicit(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.env")
	require.NoError(t, os.WriteFile(a, []byte("A=1\n"), 0o600))
	t.Setenv("ENV_FILE", a+", "+filepath.Join(dir, "missing.env"))

	assert.Equal(t, []string{a}, dotenvFiles())
}

func TestDotenvFilesWalksUp(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module x\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("A=1\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env.local"), []byte("A=2\n"), 0o600))
	nested := filepath.Join(root, "cmd", "tracker")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Setenv("ENV_FILE", "")
	t.Chdir(nested)

	assert.Equal(t, []string{
		filepath.Join(root, ".env.local"),
		filepath.Join(root, ".env"),
	}, dotenvFiles())
}

func TestDotenvFilesStopsAtModuleRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("A=1\n"), 0o600))
	mod := filepath.Join(root, "svc")
	require.NoError(t, os.MkdirAll(filepath.Join(mod, "etc"), 0o755))
	t.Setenv("ENV_FILE", "")
	t.Chdir(mod)

	assert.Empty(t, dotenvFiles())
}
