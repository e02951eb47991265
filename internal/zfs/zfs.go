// Package zfs provides wrappers around the ZFS command line tools.
package zfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/juju/ratelimit"
)

const (
	Binary = "zfs"
)

// DestroyFlag is the options flag passed to Destroy.
type DestroyFlag int

// Valid destroy options.
const (
	DestroyDefault         DestroyFlag = 1 << iota
	DestroyRecursive                   = 1 << iota
	DestroyRecursiveClones             = 1 << iota
	DestroyDeferDeletion               = 1 << iota
	DestroyForceUmount                 = 1 << iota
)

// ListByType lists the datasets by type and allows you to fetch extra custom fields.
// A filter argument may be passed to select a dataset with the matching name, or
// empty string ("") may be used to select all datasets of the given type.
func ListByType(ctx context.Context, t DatasetType, filter string, extraProps ...string) ([]Dataset, error) {
	allProps := append(dsPropList, extraProps...) // nolint: gocritic

	args := []string{"get", "-Hp", "-o", "name,property,value", "-r", "-t", string(t), strings.Join(allProps, ",")}
	if filter != "" {
		args = append(args, filter)
	}

	out, err := zfsOutput(ctx, args...)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return []Dataset{}, nil
	}

	return readDatasets(out, extraProps)
}

// Snapshots returns a slice of ZFS snapshots.
// A filter argument may be passed to select a snapshot with the matching name, or empty string ("") may be used to select all snapshots.
func Snapshots(ctx context.Context, filter string, extraProperties ...string) ([]Dataset, error) {
	return ListByType(ctx, DatasetSnapshot, filter, extraProperties...)
}

// GetDataset retrieves a single ZFS dataset by name.
// This dataset could be any valid ZFS dataset type, such as a filesystem, snapshot, or volume.
func GetDataset(ctx context.Context, name string, extraProperties ...string) (*Dataset, error) {
	allProps := append(dsPropList, extraProperties...) // nolint: gocritic

	out, err := zfsOutput(ctx, "get", "-Hp", "-o", "name,property,value", strings.Join(allProps, ","), name)
	if err != nil {
		return nil, err
	}

	datasets, err := readDatasets(out, extraProperties)
	if err != nil {
		return nil, err
	}
	if len(datasets) != 1 {
		return nil, fmt.Errorf("more output than expected: %v", out)
	}

	return &datasets[0], nil
}

// ReceiveOptions are options you can specify to customize the ZFS snapshot reception
type ReceiveOptions struct {
	// When set, uses a rate-limiter to limit the flow to this amount of bytes per second
	BytesPerSecond int64

	// Whether the received snapshot should be resumable on interrupions, or be thrown away
	Resumable bool

	// Properties to be applied to the dataset
	Properties map[string]string
}

func wrapReader(reader io.Reader, bytesPerSecond int64) io.Reader {
	if bytesPerSecond <= 0 {
		return reader
	}
	return ratelimit.Reader(reader, ratelimit.NewBucketWithRate(float64(bytesPerSecond), bytesPerSecond))
}

// ReceiveSnapshot receives a ZFS stream from the input io.Reader.
// A new snapshot is created with the specified name, and streams the input data into the newly-created snapshot.
func ReceiveSnapshot(ctx context.Context, input io.Reader, name string, recvOptions ReceiveOptions) (*Dataset, error) {
	c := command{
		cmd:   Binary,
		ctx:   ctx,
		stdin: wrapReader(input, recvOptions.BytesPerSecond),
	}

	args := make([]string, 1, 3)
	args[0] = "receive"
	if recvOptions.Resumable {
		args = append(args, "-s")
	}
	args = append(args, propsSlice(recvOptions.Properties)...)
	args = append(args, name)

	_, err := c.Run(args...)
	if err != nil {
		return nil, err
	}
	return GetDataset(ctx, name)
}

// SendOptions are options you can specify to customize the ZFS send stream
type SendOptions struct {
	// When set, uses a rate-limiter to limit the flow to this amount of bytes per second
	BytesPerSecond int64

	// For encrypted datasets, send data exactly as it exists on disk. This allows backups to
	//           be taken even if encryption keys are not currently loaded. The backup may then be
	//           received on an untrusted machine since that machine will not have the encryption keys
	//           to read the protected data or alter it without being detected. Upon being received,
	//           the dataset will have the same encryption keys as it did on the send side, although
	//           the keylocation property will be defaulted to prompt if not otherwise provided. For
	//           unencrypted datasets, this flag will be equivalent to -Lec.  Note that if you do not
	//           use this flag for sending encrypted datasets, data will be sent unencrypted and may be
	//           re-encrypted with a different encryption key on the receiving system, which will
	//           disable the ability to do a raw send to that system for incrementals.
	Raw bool
	// Include the dataset's properties in the stream.  This flag is implicit when -R is
	//           specified.  The receiving system must also support this feature. Sends of encrypted
	//           datasets must use -w when using this flag.
	IncludeProperties bool
	// Generate an incremental stream from the first snapshot (the incremental source) to the
	//           second snapshot (the incremental target).  The incremental source can be specified as
	//           the last component of the snapshot name (the @ character and following) and it is
	//           assumed to be from the same file system as the incremental target.
	//
	//           If the destination is a clone, the source may be the origin snapshot, which must be
	//           fully specified (for example, pool/fs@origin, not just @origin).
	IncrementalBase *Dataset
}

func wrapWriter(writer io.Writer, bytesPerSecond int64) io.Writer {
	if bytesPerSecond <= 0 {
		return writer
	}
	return ratelimit.Writer(writer, ratelimit.NewBucketWithRate(float64(bytesPerSecond), bytesPerSecond))
}

// SendSnapshot sends a ZFS stream of a snapshot to the input io.Writer.
// An error will be returned if the input dataset is not of snapshot type.
func (d *Dataset) SendSnapshot(ctx context.Context, output io.Writer, sendOptions SendOptions) error {
	if d.Type != DatasetSnapshot {
		return errors.New("can only send snapshots")
	}

	args := make([]string, 0, 8)
	if sendOptions.Raw {
		args = append(args, "-w")
	}
	if sendOptions.IncludeProperties {
		args = append(args, "-p")
	}
	if sendOptions.IncrementalBase != nil {
		if sendOptions.IncrementalBase.Type != DatasetSnapshot {
			return errors.New("base is not a snapshot")
		}
		args = append(args, "-i", sendOptions.IncrementalBase.Name)
	}

	c := command{
		cmd:    Binary,
		ctx:    ctx,
		stdout: wrapWriter(output, sendOptions.BytesPerSecond),
	}
	args = append([]string{"send"}, args...)
	args = append(args, d.Name)
	_, err := c.Run(args...)
	return err
}

// Destroy destroys a ZFS dataset.
// If the destroy bit flag is set, any descendents of the dataset will be recursively destroyed, including snapshots.
// If the deferred bit flag is set, the snapshot is marked for deferred deletion.
func (d *Dataset) Destroy(ctx context.Context, flags DestroyFlag) error {
	args := make([]string, 1, 3)
	args[0] = "destroy"
	if flags&DestroyRecursive != 0 {
		args = append(args, "-r")
	}

	if flags&DestroyRecursiveClones != 0 {
		args = append(args, "-R")
	}

	if flags&DestroyDeferDeletion != 0 {
		args = append(args, "-d")
	}

	if flags&DestroyForceUmount != 0 {
		args = append(args, "-f")
	}
	args = append(args, d.Name)

	return zfs(ctx, args...)
}

// Snapshot creates a new ZFS snapshot of the receiving dataset, using the specified name.
// Optionally, the snapshot can be taken recursively, creating snapshots of all descendent filesystems in a single, atomic operation.
func (d *Dataset) Snapshot(ctx context.Context, name string, recursive bool) (*Dataset, error) {
	args := make([]string, 1, 4)
	args[0] = "snapshot"
	if recursive {
		args = append(args, "-r")
	}
	snapName := fmt.Sprintf("%s@%s", d.Name, name)
	args = append(args, snapName)

	err := zfs(ctx, args...)
	if err != nil {
		return nil, err
	}
	return GetDataset(ctx, snapName)
}
