package signal

import (
	"fmt"

	"github.com/google/uuid"
)

// SourceKind tags the variant of a source handle.
type SourceKind string

const (
	// SourceResult identifies the stream of the task that produced (or
	// will produce) a result.
	SourceResult SourceKind = "result"
	// SourceTask identifies a task's stream directly.
	SourceTask SourceKind = "task"
	// SourceActor identifies the stream of the task that created an
	// actor.
	SourceActor SourceKind = "actor"
)

// Source is an opaque handle a consumer uses to request signals.
// Sources are not streams themselves; each resolves deterministically
// to exactly one stream identity, and several distinct sources may
// resolve to the same one.
type Source struct {
	// Kind is the handle variant.
	Kind SourceKind

	// ID is the handle's own identity: the result's object ID, the task
	// ID, or the actor ID, depending on Kind.
	ID string

	// TaskID is the producing task for result handles and the creating
	// task for actor handles. Unused for task identities.
	TaskID string
}

// ResultHandle builds a source for the result objectID produced by
// taskID.
func ResultHandle(objectID, taskID string) Source {
	return Source{Kind: SourceResult, ID: objectID, TaskID: taskID}
}

// TaskIdentity builds a source for a task's own stream.
func TaskIdentity(taskID string) Source {
	return Source{Kind: SourceTask, ID: taskID}
}

// ActorHandle builds a source for actorID created by taskID.
func ActorHandle(actorID, taskID string) Source {
	return Source{Kind: SourceActor, ID: actorID, TaskID: taskID}
}

// NewTaskID mints a fresh task identity.
func NewTaskID() string {
	return uuid.NewString()
}

// NewActorID mints a fresh actor identity.
func NewActorID() string {
	return uuid.NewString()
}

// Resolve maps a source handle to its canonical stream identity. It is
// pure and deterministic: one handle always maps to the same stream for
// the life of the handle.
func Resolve(src Source) (string, error) {
	switch src.Kind {
	case SourceResult:
		if src.TaskID == "" {
			return "", &UnsupportedSourceError{Kind: src.Kind, Reason: "result handle has no producing task"}
		}
		return src.TaskID, nil
	case SourceTask:
		if src.ID == "" {
			return "", &UnsupportedSourceError{Kind: src.Kind, Reason: "empty task id"}
		}
		return src.ID, nil
	case SourceActor:
		if src.TaskID == "" {
			return "", &UnsupportedSourceError{Kind: src.Kind, Reason: "actor handle has no creating task"}
		}
		return src.TaskID, nil
	default:
		return "", &UnsupportedSourceError{Kind: src.Kind, Reason: "unknown source kind"}
	}
}

// String renders the handle for logs.
func (s Source) String() string {
	switch s.Kind {
	case SourceTask:
		return fmt.Sprintf("task(%s)", s.ID)
	case SourceResult:
		return fmt.Sprintf("result(%s of task %s)", s.ID, s.TaskID)
	case SourceActor:
		return fmt.Sprintf("actor(%s of task %s)", s.ID, s.TaskID)
	default:
		return fmt.Sprintf("source(kind=%s, id=%s)", string(s.Kind), s.ID)
	}
}
