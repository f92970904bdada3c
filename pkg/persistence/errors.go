package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrConversationNotFound indicates no conversation exists for the given id.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrTaskNotFound indicates no task exists for the given id.
	ErrTaskNotFound = errors.New("task not found")

	// ErrUserNotFound indicates no user exists for the given id.
	ErrUserNotFound = errors.New("user not found")

	// ErrPublishedFormNotFound indicates no published form exists for the conversation.
	ErrPublishedFormNotFound = errors.New("published form not found")

	// ErrConversationConflict indicates the conversation's version moved
	// between read and write; the caller lost an optimistic-concurrency race.
	ErrConversationConflict = errors.New("conversation version conflict")

	// ErrVersionExists indicates an attempt to overwrite an immutable
	// version-history entry.
	ErrVersionExists = errors.New("snapshot version already exists")
)

// StorageError wraps storage-level failures with the operation and entity
// they occurred on.
type StorageError struct {
	Op       string // Operation being performed (e.g. "ClaimTask", "UpdateSnapshot")
	EntityID string // Affected entity id if applicable
	Err      error  // Underlying error
}

func (e *StorageError) Error() string {
	if e.EntityID != "" {
		return fmt.Sprintf("%s failed for %s: %v", e.Op, e.EntityID, e.Err)
	}

	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStorageError creates a new storage error with context.
func NewStorageError(op, entityID string, err error) *StorageError {
	return &StorageError{Op: op, EntityID: entityID, Err: err}
}

// IsConversationNotFound checks if an error indicates a missing conversation.
func IsConversationNotFound(err error) bool {
	return errors.Is(err, ErrConversationNotFound)
}

// IsTaskNotFound checks if an error indicates a missing task.
func IsTaskNotFound(err error) bool {
	return errors.Is(err, ErrTaskNotFound)
}

// IsUserNotFound checks if an error indicates a missing user.
func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

// IsPublishedFormNotFound checks if an error indicates no published form.
func IsPublishedFormNotFound(err error) bool {
	return errors.Is(err, ErrPublishedFormNotFound)
}

// IsConversationConflict checks if an error indicates a lost optimistic
// concurrency race on a conversation.
func IsConversationConflict(err error) bool {
	return errors.Is(err, ErrConversationConflict)
}
