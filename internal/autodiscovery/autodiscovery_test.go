package autodiscovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEligibleDir(t *testing.T) {
	cases := map[string]bool{
		"my-pipeline": true,
		".hidden":     false,
		"__pycache__": false,
		"None":        false,
		"":            false,
	}
	for name, want := range cases {
		assert.Equal(t, want, eligibleDir(name), "name=%q", name)
	}
}

func TestScanFilesystem_FindsPyFilesTwoLevelsDeep(t *testing.T) {
	root := t.TempDir()
	pipelineDir := filepath.Join(root, "demo")
	require.NoError(t, os.MkdirAll(pipelineDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pipelineDir, "main.py"), []byte("pass"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(pipelineDir, "notes.txt"), []byte("x"), 0o644))

	s := &Scanner{PipelineDir: root}
	results, err := s.scanFilesystem()
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "main.py", results[0].pyName)
	assert.Equal(t, "demo", results[0].dirName)
}

func TestScanFilesystem_SkipsIneligibleDirectories(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{".hidden", "__pycache__", "None"} {
		d := filepath.Join(root, dir)
		require.NoError(t, os.MkdirAll(d, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(d, "main.py"), []byte("pass"), 0o644))
	}

	s := &Scanner{PipelineDir: root}
	results, err := s.scanFilesystem()
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestScanFilesystem_IgnoresNestedNonPyFiles(t *testing.T) {
	root := t.TempDir()
	pipelineDir := filepath.Join(root, "demo")
	nested := filepath.Join(pipelineDir, "nested")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "deep.py"), []byte("pass"), 0o644))

	s := &Scanner{PipelineDir: root}
	results, err := s.scanFilesystem()
	require.NoError(t, err)
	assert.Empty(t, results)
}
