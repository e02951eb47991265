package statusapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sherbacov/zsnapd/internal/dsconfig"
	"github.com/sherbacov/zsnapd/internal/engine"
	"github.com/sherbacov/zsnapd/internal/remote"
	"github.com/sherbacov/zsnapd/internal/timeutil"
	"github.com/sherbacov/zsnapd/internal/zfs"
)

const testToken = "blaat"

type fakeAdapter struct {
	snapshots map[string][]zfs.Dataset
}

func (a *fakeAdapter) Snapshots(_ context.Context, dataset string) ([]zfs.Dataset, error) {
	return a.snapshots[dataset], nil
}
func (a *fakeAdapter) CreateSnapshot(context.Context, string, string) error  { return nil }
func (a *fakeAdapter) DestroySnapshot(context.Context, string, string) error { return nil }
func (a *fakeAdapter) Send(context.Context, string, string, string, io.Writer) error {
	return nil
}
func (a *fakeAdapter) Receive(context.Context, string, string, io.Reader) error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func localEndpoints(*dsconfig.Config) *remote.Endpoint {
	return remote.NewEndpoint("", 0, "", discardLogger())
}

func testServer(t *testing.T, cfgs []*dsconfig.Config, adapter *fakeAdapter, tokens []string) (*httptest.Server, *engine.Engine) {
	t.Helper()
	eng := engine.New(adapter, localEndpoints, timeutil.RealClock{}, discardLogger())

	s := &Server{
		router:  httprouter.New(),
		config:  Config{AuthenticationTokens: tokens},
		logger:  discardLogger(),
		ctx:     context.Background(),
		engine:  eng,
		adapter: adapter,
		configs: func() []*dsconfig.Config { return cfgs },
	}
	s.registerRoutes()

	server := httptest.NewServer(s.router)
	t.Cleanup(server.Close)
	return server, eng
}

func TestHandleListDatasetsRequiresToken(t *testing.T) {
	server, _ := testServer(t, nil, &fakeAdapter{}, []string{testToken})
	resp, err := http.Get(server.URL + "/datasets")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleListDatasetsReturnsConfiguredDatasets(t *testing.T) {
	cfgs := []*dsconfig.Config{
		{Name: "zpool/a", Snapshot: true},
		{Name: "zpool/b", ReplicateTarget: "zpool/b-backup"},
	}
	server, _ := testServer(t, cfgs, &fakeAdapter{}, []string{testToken})

	resp, err := http.Get(fmt.Sprintf("%s/datasets?%s=%s", server.URL, authenticationTokenGETParam, testToken))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summaries []datasetSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summaries))
	require.Len(t, summaries, 2)
	assert.Equal(t, "zpool/a", summaries[0].Name)
	assert.Equal(t, "zpool/b-backup", summaries[1].ReplicateTarget)
}

func TestHandleGetDatasetUnknownReturns404(t *testing.T) {
	server, _ := testServer(t, nil, &fakeAdapter{}, nil)
	resp, err := http.Get(server.URL + "/datasets/missing-dataset")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleGetDatasetReturnsMergedConfigAndStatus(t *testing.T) {
	adapter := &fakeAdapter{}
	cfg := &dsconfig.Config{Name: "zpool-a", Snapshot: true}
	server, eng := testServer(t, []*dsconfig.Config{cfg}, adapter, nil)

	eng.Run(context.Background(), cfg)

	resp, err := http.Get(server.URL + "/datasets/zpool-a")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var detail datasetDetail
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&detail))
	assert.Equal(t, "zpool-a", detail.Config.Name)
	require.NotNil(t, detail.Status)
	assert.Equal(t, engine.StateIdle, detail.Status.State)
}

func TestHandleListSnapshotsReturnsAdapterListing(t *testing.T) {
	adapter := &fakeAdapter{
		snapshots: map[string][]zfs.Dataset{
			"zpool-a": {{Name: "zpool-a@202401010000"}},
		},
	}
	cfg := &dsconfig.Config{Name: "zpool-a"}
	server, _ := testServer(t, []*dsconfig.Config{cfg}, adapter, nil)

	resp, err := http.Get(server.URL + "/datasets/zpool-a/snapshots")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snaps []zfs.Dataset
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snaps))
	require.Len(t, snaps, 1)
	assert.Equal(t, "zpool-a@202401010000", snaps[0].Name)
}
