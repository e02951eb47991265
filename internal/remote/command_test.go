package remote

import (
	"context"
	"testing"

	"github.com/sherbacov/zsnapd/internal/zfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCapturedReturnsStdout(t *testing.T) {
	out, err := runCaptured(context.Background(), []string{"echo", "-n", "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
}

func TestRunCapturedWrapsNonzeroExitWithStderr(t *testing.T) {
	_, err := runCaptured(context.Background(), []string{"sh", "-c", "echo nope >&2; exit 1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestRunCapturedRejectsEmptyArgv(t *testing.T) {
	_, err := runCaptured(context.Background(), nil)
	assert.Error(t, err)
}

func TestParseRemoteSnapshotList(t *testing.T) {
	raw := "tank/data@202406150030\t1718425800\ntank/data@202406140030\t1718339400\n"
	datasets, err := parseRemoteSnapshotList("tank/data", raw)
	require.NoError(t, err)
	require.Len(t, datasets, 2)
	assert.Equal(t, "tank/data@202406150030", datasets[0].Name)
	assert.Equal(t, zfs.DatasetSnapshot, datasets[0].Type)
	assert.Equal(t, uint64(1718425800), datasets[0].Creation)
}

func TestParseRemoteSnapshotListSkipsBlankLines(t *testing.T) {
	datasets, err := parseRemoteSnapshotList("tank/data", "tank/data@202406150030\t1718425800\n\n")
	require.NoError(t, err)
	assert.Len(t, datasets, 1)
}

func TestParseRemoteSnapshotListRejectsMalformedLine(t *testing.T) {
	_, err := parseRemoteSnapshotList("tank/data", "garbage-line-without-tab\n")
	assert.Error(t, err)
}
