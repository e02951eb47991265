package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"

	"github.com/juju/ratelimit"

	"github.com/sherbacov/zsnapd/internal/zsnapderrors"
)

// Stage is one subprocess step of a replication pipeline — a compression
// filter or the ssh command itself. Grounded on SPEC_FULL.md's "Subprocess
// pipelines -> structured pipeline value" design note: each stage is wired
// stdout-to-stdin rather than relying on a shell's own piping, and the
// first stage to exit nonzero decides the pipeline's outcome with its full
// stderr attached.
type Stage struct {
	Name string // for error/log context, e.g. "compress", "ssh"
	Argv []string
}

// Pipeline composes zero or more Stages between a producer and a consumer:
// producer writes the uncompressed stream (e.g. `zfs send`), each Stage
// filters it (e.g. `zstd -c` / `ssh ... 'zfs receive'`), and consumer reads
// whatever the last stage emits (nil when the last stage is itself the
// sink, e.g. an ssh command whose remote end runs `zfs receive`).
type Pipeline struct {
	Stages         []Stage
	BytesPerSecond int64
	Logger         *slog.Logger
}

// Run executes the pipeline to completion. produce is called with the
// first stage's stdin (or, with no stages, a pipe straight to consume);
// pass nil when the first stage needs no stdin of its own, as in a pull
// whose first stage is the ssh `zfs send` command. consume is called with
// the last stage's stdout; pass nil when nothing should read it (the sink
// is remote, as in a push).
//
// Any stage's nonzero exit is reported as PipelineFailure with its stderr
// attached (spec §4.3: "The pipeline must propagate nonzero exit of any
// stage as transfer failure"; §7 "PipelineFailure ... treated as ToolFailure").
func (p *Pipeline) Run(ctx context.Context, dataset string, produce func(io.Writer) error, consume func(io.Reader) error) error {
	if len(p.Stages) == 0 {
		return p.runDirect(dataset, produce, consume)
	}

	cmds := make([]*exec.Cmd, len(p.Stages))
	stderrs := make([]bytes.Buffer, len(p.Stages))
	for i, stage := range p.Stages {
		if len(stage.Argv) == 0 {
			return zsnapderrors.New(zsnapderrors.KindConfigError, dataset, stage.Name, fmt.Errorf("empty stage command"))
		}
		cmd := exec.CommandContext(ctx, stage.Argv[0], stage.Argv[1:]...)
		cmd.Stderr = &stderrs[i]
		cmds[i] = cmd
	}

	firstIn, produceDone := p.wireProducer(dataset, produce, cmds[0])
	for i := 1; i < len(cmds); i++ {
		pipe, err := cmds[i-1].StdoutPipe()
		if err != nil {
			return zsnapderrors.New(zsnapderrors.KindPipelineFailure, dataset, p.Stages[i-1].Name, err)
		}
		cmds[i].Stdin = pipe
	}
	lastOut, consumeDone := p.wireConsumer(dataset, consume, cmds[len(cmds)-1])

	for i, cmd := range cmds {
		if err := cmd.Start(); err != nil {
			return zsnapderrors.New(zsnapderrors.KindPipelineFailure, dataset, p.Stages[i].Name, err)
		}
	}

	var stageErr error
	for i, cmd := range cmds {
		if err := cmd.Wait(); err != nil && stageErr == nil {
			stageErr = zsnapderrors.New(zsnapderrors.KindPipelineFailure, dataset, p.Stages[i].Name,
				fmt.Errorf("%v: %s", err, stderrs[i].String()))
		}
	}

	if firstIn != nil {
		_ = firstIn.Close()
	}
	produceErr := <-produceDone
	if lastOut != nil {
		_ = lastOut.Close()
	}
	consumeErr := <-consumeDone

	if stageErr != nil {
		return stageErr
	}
	if produceErr != nil {
		return produceErr
	}
	return consumeErr
}

// runDirect handles the degenerate no-stages case: a local, uncompressed
// transfer (e.g. a local-endpoint, no-compression dataset) where producer
// and consumer are connected by a single in-process pipe.
func (p *Pipeline) runDirect(dataset string, produce func(io.Writer) error, consume func(io.Reader) error) error {
	pr, pw := io.Pipe()
	writer := io.Writer(pw)
	if p.BytesPerSecond > 0 {
		writer = ratelimit.Writer(pw, ratelimit.NewBucketWithRate(float64(p.BytesPerSecond), p.BytesPerSecond))
	}

	produceDone := make(chan error, 1)
	go func() {
		var err error
		if produce != nil {
			err = produce(writer)
		}
		_ = pw.Close()
		produceDone <- err
	}()

	var consumeErr error
	if consume != nil {
		consumeErr = consume(pr)
	} else {
		_, consumeErr = io.Copy(io.Discard, pr)
	}

	produceErr := <-produceDone
	if produceErr != nil {
		return zsnapderrors.New(zsnapderrors.KindPipelineFailure, dataset, "produce", produceErr)
	}
	if consumeErr != nil {
		return zsnapderrors.New(zsnapderrors.KindPipelineFailure, dataset, "consume", consumeErr)
	}
	return nil
}

func (p *Pipeline) wireProducer(dataset string, produce func(io.Writer) error, first *exec.Cmd) (io.WriteCloser, chan error) {
	if produce == nil {
		done := make(chan error, 1)
		done <- nil
		return nil, done
	}

	pr, pw := io.Pipe()
	first.Stdin = pr

	done := make(chan error, 1)
	go func() {
		var writer io.Writer = pw
		if p.BytesPerSecond > 0 {
			writer = ratelimit.Writer(pw, ratelimit.NewBucketWithRate(float64(p.BytesPerSecond), p.BytesPerSecond))
		}
		err := produce(writer)
		_ = pw.Close()
		if err != nil {
			done <- zsnapderrors.New(zsnapderrors.KindPipelineFailure, dataset, "produce", err)
			return
		}
		done <- nil
	}()
	return pw, done
}

func (p *Pipeline) wireConsumer(dataset string, consume func(io.Reader) error, last *exec.Cmd) (io.WriteCloser, chan error) {
	if consume == nil {
		last.Stdout = io.Discard
		done := make(chan error, 1)
		done <- nil
		return nil, done
	}

	pr, pw := io.Pipe()
	last.Stdout = pw

	done := make(chan error, 1)
	go func() {
		err := consume(pr)
		if err != nil {
			done <- zsnapderrors.New(zsnapderrors.KindPipelineFailure, dataset, "consume", err)
			return
		}
		done <- nil
	}()
	return pw, done
}
