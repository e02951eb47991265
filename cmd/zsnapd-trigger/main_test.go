package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWritesTriggerFileForBareMountpoint(t *testing.T) {
	dir := t.TempDir()

	err := run("", dir, false)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, triggerFileName))
}

func TestRunResolvesDatasetNameToMountpoint(t *testing.T) {
	dir := t.TempDir()
	mountpoint := filepath.Join(dir, "mnt")
	require.NoError(t, os.MkdirAll(mountpoint, 0o755))

	datasetConfPath := filepath.Join(dir, "dataset.conf")
	require.NoError(t, os.WriteFile(datasetConfPath, []byte(
		"[zpool/demo]\nmountpoint = "+mountpoint+"\nsnapshot = true\ntime = 21:00\n",
	), 0o644))

	configPath := filepath.Join(dir, "process.conf")
	require.NoError(t, os.WriteFile(configPath, []byte(
		"[zsnapd]\ndataset_config_file = "+datasetConfPath+"\n",
	), 0o644))

	err := run(configPath, "zpool/demo", false)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(mountpoint, triggerFileName))
}

func TestRunFailsForUnknownDataset(t *testing.T) {
	dir := t.TempDir()

	datasetConfPath := filepath.Join(dir, "dataset.conf")
	require.NoError(t, os.WriteFile(datasetConfPath, []byte("[zpool/demo]\nmountpoint = "+dir+"\ntime = 21:00\n"), 0o644))

	configPath := filepath.Join(dir, "process.conf")
	require.NoError(t, os.WriteFile(configPath, []byte(
		"[zsnapd]\ndataset_config_file = "+datasetConfPath+"\n",
	), 0o644))

	err := run(configPath, "zpool/missing", false)
	assert.Error(t, err)
}

func TestRunFailsWhenProbeRequestedWithoutDatasetName(t *testing.T) {
	dir := t.TempDir()

	err := run("", dir, true)
	assert.Error(t, err)
}
