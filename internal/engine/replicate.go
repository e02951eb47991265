package engine

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sherbacov/zsnapd/internal/remote"
	"github.com/sherbacov/zsnapd/internal/timeutil"
	"github.com/sherbacov/zsnapd/internal/zfs"
)

// sendStep is one `zfs send` invocation: a full send when Base is empty, an
// incremental send from Base to Target otherwise.
type sendStep struct {
	Base   string
	Target string
}

func snapshotShortName(fullName string) string {
	idx := strings.LastIndexByte(fullName, '@')
	if idx < 0 {
		return fullName
	}
	return fullName[idx+1:]
}

// snapshotNames extracts snapshot names from a snapshot listing in the
// order the listing gives them (planReplicationSteps treats that order as
// oldest first), optionally restricted to managed names only.
func snapshotNames(datasets []zfs.Dataset, allSnapshots bool) []string {
	names := make([]string, 0, len(datasets))
	for _, ds := range datasets {
		name := snapshotShortName(ds.Name)
		if !allSnapshots && !timeutil.IsManagedName(name) {
			continue
		}
		names = append(names, name)
	}
	return names
}

// planReplicationSteps implements spec §4.5's push/pull replication rule:
// find the most recent snapshot name common to source and target; if one
// exists, a single incremental from it to the newest source snapshot
// suffices; if none exists, the oldest source snapshot goes across as a
// full stream, followed by one incremental per subsequent snapshot up to
// the newest. A nil/empty result means nothing to send (already in sync,
// or the source has no eligible snapshots).
func planReplicationSteps(sourceNames, targetNames []string) []sendStep {
	if len(sourceNames) == 0 {
		return nil
	}

	targetSet := make(map[string]bool, len(targetNames))
	for _, n := range targetNames {
		targetSet[n] = true
	}

	common := ""
	for _, n := range sourceNames {
		if targetSet[n] {
			common = n
		}
	}

	newest := sourceNames[len(sourceNames)-1]
	if common != "" {
		if common == newest {
			return nil
		}
		return []sendStep{{Base: common, Target: newest}}
	}

	steps := make([]sendStep, 0, len(sourceNames))
	steps = append(steps, sendStep{Target: sourceNames[0]})
	for i := 1; i < len(sourceNames); i++ {
		steps = append(steps, sendStep{Base: sourceNames[i-1], Target: sourceNames[i]})
	}
	return steps
}

// remoteSendCommand builds the remote `zfs send` command line for a pull's
// SSH stage, embedding compression (if configured) as a shell pipe so the
// compressed bytes only traverse the wire once.
func remoteSendCommand(dataset, compression string, step sendStep) string {
	var cmd string
	if step.Base == "" {
		cmd = fmt.Sprintf("zfs send %s@%s", dataset, step.Target)
	} else {
		cmd = fmt.Sprintf("zfs send -i %s@%s %s@%s", dataset, step.Base, dataset, step.Target)
	}
	if compression != "" {
		cmd = fmt.Sprintf("%s | %s -c", cmd, compression)
	}
	return cmd
}

// remoteReceiveCommand builds the remote `zfs receive` command line for a
// push's SSH stage, decompressing (if configured) before the stream reaches
// `zfs receive`.
func remoteReceiveCommand(dataset, compression string, step sendStep) string {
	recv := fmt.Sprintf("zfs receive -F %s@%s", dataset, step.Target)
	if compression != "" {
		return fmt.Sprintf("%s -d | %s", compression, recv)
	}
	return recv
}

// countWriter reports every successful Write through onBytes, grounded on
// job/send.go's ZFSSend.BytesSent() progress-introspection contract — here
// feeding Engine.CurrentRun instead of an HTTP resume token.
type countWriter struct {
	io.Writer
	onBytes func(int64)
}

func (c countWriter) Write(p []byte) (int, error) {
	n, err := c.Writer.Write(p)
	if n > 0 && c.onBytes != nil {
		c.onBytes(int64(n))
	}
	return n, err
}

type countReader struct {
	io.Reader
	onBytes func(int64)
}

func (c countReader) Read(p []byte) (int, error) {
	n, err := c.Reader.Read(p)
	if n > 0 && c.onBytes != nil {
		c.onBytes(int64(n))
	}
	return n, err
}

// runPushStep sends step from the local sourceDataset to targetDataset on
// endpoint. A local endpoint runs both halves through adapter directly; a
// remote endpoint composes a *remote.Pipeline with an SSH stage running the
// receive (and, if configured, the decompression) on the other end. onBytes,
// if non-nil, is called with every chunk of bytes sent.
func runPushStep(ctx context.Context, adapter ZFSAdapter, endpoint *remote.Endpoint, sourceDataset, targetDataset, compression string, step sendStep, onBytes func(int64)) error {
	if endpoint.IsLocal() {
		pr, pw := io.Pipe()
		sendErr := make(chan error, 1)
		go func() {
			err := adapter.Send(ctx, sourceDataset, step.Target, step.Base, countWriter{Writer: pw, onBytes: onBytes})
			_ = pw.Close()
			sendErr <- err
		}()
		recvErr := adapter.Receive(ctx, targetDataset, step.Target, pr)
		if err := <-sendErr; err != nil {
			return err
		}
		return recvErr
	}

	var stages []remote.Stage
	if compression != "" {
		stages = append(stages, remote.Stage{Name: "compress", Argv: []string{compression, "-c"}})
	}
	sshArgv, err := endpoint.CommandArgv(remoteReceiveCommand(targetDataset, compression, step))
	if err != nil {
		return err
	}
	stages = append(stages, remote.Stage{Name: "ssh", Argv: sshArgv})

	pipeline := &remote.Pipeline{Stages: stages}
	return pipeline.Run(ctx, sourceDataset,
		func(w io.Writer) error {
			return adapter.Send(ctx, sourceDataset, step.Target, step.Base, countWriter{Writer: w, onBytes: onBytes})
		},
		nil,
	)
}

// runPullStep receives step from sourceDataset on endpoint into the local
// targetDataset, the mirror of runPushStep.
func runPullStep(ctx context.Context, adapter ZFSAdapter, endpoint *remote.Endpoint, sourceDataset, targetDataset, compression string, step sendStep, onBytes func(int64)) error {
	if endpoint.IsLocal() {
		pr, pw := io.Pipe()
		sendErr := make(chan error, 1)
		go func() {
			err := adapter.Send(ctx, sourceDataset, step.Target, step.Base, pw)
			_ = pw.Close()
			sendErr <- err
		}()
		recvErr := adapter.Receive(ctx, targetDataset, step.Target, countReader{Reader: pr, onBytes: onBytes})
		if err := <-sendErr; err != nil {
			return err
		}
		return recvErr
	}

	sshArgv, err := endpoint.CommandArgv(remoteSendCommand(sourceDataset, compression, step))
	if err != nil {
		return err
	}
	stages := []remote.Stage{{Name: "ssh", Argv: sshArgv}}
	if compression != "" {
		stages = append(stages, remote.Stage{Name: "decompress", Argv: []string{compression, "-d"}})
	}

	pipeline := &remote.Pipeline{Stages: stages}
	return pipeline.Run(ctx, targetDataset, nil,
		func(r io.Reader) error {
			return adapter.Receive(ctx, targetDataset, step.Target, countReader{Reader: r, onBytes: onBytes})
		},
	)
}
