package cmd

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, root string) string {
	t.Helper()
	path := filepath.Join(root, "cardcataloger.toml")
	content := fmt.Sprintf(`provider = "mock"
compress_images = false
max_failures = 5

[paths]
inbox = %q
ready = %q
error = %q
batches = %q
output = %q
tmp = %q
prompts = %q
log_dir = %q
`,
		filepath.Join(root, "inbox"),
		filepath.Join(root, "ready"),
		filepath.Join(root, "error"),
		filepath.Join(root, "batches"),
		filepath.Join(root, "output"),
		filepath.Join(root, "tmp"),
		filepath.Join(root, "prompts"),
		filepath.Join(root, "logs"),
	)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeScan(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()
	require.NoError(t, jpeg.Encode(file, image.NewGray(image.Rect(0, 0, 8, 8)), nil))
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestPairQueuePost(t *testing.T) {
	t.Setenv("PIPELINE_PROVIDER", "")
	t.Setenv("PIPELINE_MAX_FAILURES", "")
	root := t.TempDir()
	cfgPath := writeTestConfig(t, root)

	writeScan(t, filepath.Join(root, "inbox", "Box1-SP_0001_F.jpg"))
	writeScan(t, filepath.Join(root, "inbox", "Box1-SP_0001_B.jpg"))
	writeScan(t, filepath.Join(root, "inbox", "Box1-PK_0002_F.jpg"))
	writeScan(t, filepath.Join(root, "inbox", "Box1-PK_0002_B.jpg"))

	out, err := run(t, "pair", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Paired 2 card(s).")

	out, err = run(t, "queue", "--config", cfgPath, "--batch-size", "10")
	require.NoError(t, err)
	jobID := strings.TrimSpace(out)
	require.True(t, strings.HasPrefix(jobID, "batch_"), out)

	out, err = run(t, "post", "--config", cfgPath, "--job-id", jobID)
	require.NoError(t, err)
	assert.Contains(t, out, "[POST] Box1-SP_0001: 2025 Prototype 1 TBD :: conf=0.62")
	assert.Contains(t, out, "[POST] Box1-PK_0002:")

	resultRoot := filepath.Join(root, "output", jobID, "results")
	assert.Contains(t, out, resultRoot)
	assert.FileExists(t, filepath.Join(resultRoot, "csv", "batch.csv"))
	assert.FileExists(t, filepath.Join(resultRoot, "xlsx", "listing.xlsx"))
	assert.FileExists(t, filepath.Join(root, "logs", "pipeline.jsonl"))
}

func TestPostRequiresJobID(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir())
	_, err := run(t, "post", "--config", cfgPath)
	require.Error(t, err)
}

func TestPostUnknownJob(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir())
	_, err := run(t, "post", "--config", cfgPath, "--job-id", "batch_missing")
	require.Error(t, err)
}

func TestConfigInit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "cardcataloger.toml")
	out, err := run(t, "config", "init", "--path", target)
	require.NoError(t, err)
	assert.Contains(t, out, target)
	assert.FileExists(t, target)

	_, err = run(t, "config", "init", "--path", target)
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	t.Setenv("PIPELINE_PROVIDER", "")
	cfgPath := writeTestConfig(t, t.TempDir())
	out, err := run(t, "config", "validate", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid")
	assert.Contains(t, out, "Provider: mock")
}
