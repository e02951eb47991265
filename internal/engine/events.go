package engine

import eventemitter "github.com/vansante/go-event-emitter"

// Event names mirror job/event.go's naming convention, extended to the
// states this engine's sequence actually has (pre/snap/repl/post/clean)
// rather than the teacher's create/send/mark/prune feature split.
const (
	SnapshotCreatedEvent     eventemitter.EventType = "snapshot-created"
	ReplicationStartedEvent  eventemitter.EventType = "replication-started"
	ReplicationSkippedEvent  eventemitter.EventType = "replication-skipped"
	ReplicationFinishedEvent eventemitter.EventType = "replication-finished"
	SnapshotDestroyedEvent   eventemitter.EventType = "snapshot-destroyed"
	RunFailedEvent           eventemitter.EventType = "run-failed"
)
