// Package remote builds the SSH-tunnelled connection to a replication peer:
// expanding the configured command template, probing TCP reachability
// before every use, and composing the send/compress/ssh/receive pipeline
// that carries a replication transfer.
package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sherbacov/zsnapd/internal/zfs"
	"github.com/sherbacov/zsnapd/internal/zsnapderrors"
)

// probeTimeout bounds the TCP reachability check so a dead peer fails a
// tick fast instead of hanging the scheduler (spec §4.3: "this prevents
// long hangs on laptops").
const probeTimeout = 3 * time.Second

// maximumCacheAge bounds how long a remote snapshot listing is trusted
// before a fresh probe is required, grounded on job/remote_snapshots.go's
// datasetCache/maximumCacheAge pattern (see DESIGN.md).
const maximumCacheAge = 2 * time.Minute

// Endpoint is one configured replication peer: a possibly-remote host,
// reached via a templated SSH command, or the local machine when Host is
// empty.
type Endpoint struct {
	Host            string
	Port            int
	CommandTemplate string // e.g. "ssh {host} -p {port}"; empty only valid when Host is empty

	logger *slog.Logger

	cacheLock sync.Mutex
	cache     map[string]snapshotCache
}

type snapshotCache struct {
	at        time.Time
	snapshots []zfs.Dataset
}

// NewEndpoint builds an Endpoint from its resolved dataset configuration
// fields.
func NewEndpoint(host string, port int, commandTemplate string, logger *slog.Logger) *Endpoint {
	return &Endpoint{
		Host:            host,
		Port:            port,
		CommandTemplate: commandTemplate,
		logger:          logger,
		cache:           make(map[string]snapshotCache),
	}
}

// IsLocal reports whether this endpoint is the local machine — commands
// run directly, no SSH, no probe required.
func (e *Endpoint) IsLocal() bool {
	return e.Host == ""
}

// Probe performs the TCP reachability check spec §4.3 requires before any
// remote use this tick. It is a no-op success for a local endpoint.
func (e *Endpoint) Probe(ctx context.Context) error {
	if e.IsLocal() {
		return nil
	}

	dialer := net.Dialer{Timeout: probeTimeout}
	addr := net.JoinHostPort(e.Host, strconv.Itoa(e.Port))

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	conn, err := dialer.DialContext(probeCtx, "tcp", addr)
	if err != nil {
		return zsnapderrors.New(zsnapderrors.KindEndpointUnreachable, "", "probe", fmt.Errorf("dial %s: %w", addr, err))
	}
	_ = conn.Close()
	return nil
}

// sshArgs expands the command template's {host}/{port} placeholders and
// splits it into argv, following the teacher's own "shell word split, no
// shell invocation" convention (internal/zfs/utils.go never shells out
// through /bin/sh either).
func (e *Endpoint) sshArgs() ([]string, error) {
	if e.IsLocal() {
		return nil, nil
	}
	if e.CommandTemplate == "" {
		return nil, fmt.Errorf("remote endpoint %s:%d has no replicate_endpoint_command configured", e.Host, e.Port)
	}

	expanded := strings.NewReplacer(
		"{host}", e.Host,
		"{port}", strconv.Itoa(e.Port),
	).Replace(e.CommandTemplate)

	args := strings.Fields(expanded)
	if len(args) == 0 {
		return nil, fmt.Errorf("remote endpoint %s:%d command template expanded to nothing", e.Host, e.Port)
	}
	return args, nil
}

// CommandArgv builds the full argv to run remoteCommand on this endpoint:
// the expanded SSH command line with remoteCommand as its trailing argument,
// or just remoteCommand split into argv when the endpoint is local. Used by
// callers (internal/engine's replication step) that need to compose a
// *remote.Pipeline whose stages include an SSH hop.
func (e *Endpoint) CommandArgv(remoteCommand string) ([]string, error) {
	if e.IsLocal() {
		args := strings.Fields(remoteCommand)
		if len(args) == 0 {
			return nil, fmt.Errorf("empty local command")
		}
		return args, nil
	}

	args, err := e.sshArgs()
	if err != nil {
		return nil, err
	}
	return append(args, remoteCommand), nil
}

// cachedSnapshots returns a cached snapshot listing for dataset if it is
// younger than maximumCacheAge, and whether the cache was used.
func (e *Endpoint) cachedSnapshots(dataset string) ([]zfs.Dataset, bool) {
	e.cacheLock.Lock()
	defer e.cacheLock.Unlock()

	entry, ok := e.cache[dataset]
	if !ok || time.Since(entry.at) > maximumCacheAge {
		return nil, false
	}
	return entry.snapshots, true
}

func (e *Endpoint) setCachedSnapshots(dataset string, snapshots []zfs.Dataset) {
	e.cacheLock.Lock()
	defer e.cacheLock.Unlock()
	e.cache[dataset] = snapshotCache{at: time.Now(), snapshots: snapshots}
}

// ClearCache drops any cached listing for dataset, forcing the next
// Snapshots call to re-probe.
func (e *Endpoint) ClearCache(dataset string) {
	e.cacheLock.Lock()
	defer e.cacheLock.Unlock()
	delete(e.cache, dataset)
}

// Snapshots lists dataset's snapshots on this endpoint, using a cached
// listing when one is fresh enough instead of issuing the listing command
// again.
func (e *Endpoint) Snapshots(ctx context.Context, dataset string) ([]zfs.Dataset, error) {
	if cached, ok := e.cachedSnapshots(dataset); ok {
		return cached, nil
	}

	list, err := e.listSnapshots(ctx, dataset)
	if err != nil {
		return nil, err
	}
	e.setCachedSnapshots(dataset, list)
	return list, nil
}

func (e *Endpoint) listSnapshots(ctx context.Context, dataset string) ([]zfs.Dataset, error) {
	if e.IsLocal() {
		return zfs.Snapshots(ctx, dataset)
	}

	out, err := e.runCommand(ctx, fmt.Sprintf("zfs list -Hp -t snapshot -o name,creation -r %s", dataset))
	if err != nil {
		return nil, err
	}
	return parseRemoteSnapshotList(dataset, out)
}

// DestroySnapshot destroys dataset@name on this endpoint — local directly,
// remote via the same SSH command-line convention as listSnapshots.
func (e *Endpoint) DestroySnapshot(ctx context.Context, dataset, name string) error {
	full := dataset + "@" + name
	if e.IsLocal() {
		ds, err := zfs.GetDataset(ctx, full)
		if err != nil {
			return err
		}
		return ds.Destroy(ctx, zfs.DestroyDefault)
	}

	_, err := e.runCommand(ctx, fmt.Sprintf("zfs destroy %s", full))
	return err
}

// runCommand executes cmd on this endpoint (over SSH, or directly if
// local) and returns its captured stdout.
func (e *Endpoint) runCommand(ctx context.Context, cmd string) (string, error) {
	args, err := e.sshArgs()
	if err != nil {
		return "", zsnapderrors.New(zsnapderrors.KindConfigError, "", "remote-command", err)
	}
	return runCaptured(ctx, append(args, cmd))
}
