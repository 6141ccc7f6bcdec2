package engine

import "github.com/zoobzio/capitan"

// Digest lifecycle signals. Hook them with capitan.Hook.
var (
	// DigestStarted is emitted when a digest begins.
	DigestStarted = capitan.NewSignal(
		"dirtycheck.digest.started",
		"Digest started on a root node",
	)

	// DigestSettled is emitted when a walk finds no change.
	DigestSettled = capitan.NewSignal(
		"dirtycheck.digest.settled",
		"Digest settled with no remaining changes",
	)

	// DigestAborted is emitted when the iteration budget is exceeded.
	DigestAborted = capitan.NewSignal(
		"dirtycheck.digest.aborted",
		"Digest aborted after exceeding the iteration budget",
	)

	// ListenerFailed is emitted for every recovered listener or getter failure.
	ListenerFailed = capitan.NewSignal(
		"dirtycheck.listener.failed",
		"Listener or getter failed during a digest",
	)
)

// Field keys for digest signals.
var (
	// KeyRunID is the digest run identifier.
	KeyRunID = capitan.NewStringKey("run_id")

	// KeyRoot is the rendered root node name.
	KeyRoot = capitan.NewStringKey("root")

	// KeyIterations is the number of walks performed.
	KeyIterations = capitan.NewIntKey("iterations")

	// KeyFired is the number of listener calls in the run.
	KeyFired = capitan.NewIntKey("fired")

	// KeyWatch is the failing watcher's label.
	KeyWatch = capitan.NewStringKey("watch")

	// KeyNode is the rendered name of the failing watcher's node.
	KeyNode = capitan.NewStringKey("node")

	// KeyError is the error message.
	KeyError = capitan.NewStringKey("error")

	// KeyDuration is the digest wall time.
	KeyDuration = capitan.NewDurationKey("duration")
)
