package app

// Status is a lifecycle state of a build. Jobs reuse the type for their enablement state.
type Status string

const (
	// StatusCreated defines the status of a build that exists but is not runnable yet.
	StatusCreated Status = "CREATED"
	// StatusQueued defines the status of a build that is handed over to the executor.
	StatusQueued Status = "QUEUED"
	// StatusRunning defines the status of a build that is executing.
	StatusRunning Status = "RUNNING"
	// StatusSuccess defines the status of a build that finished successfully.
	StatusSuccess Status = "SUCCESS"
	// StatusFailure defines the status of a build that failed or whose join was vetoed.
	StatusFailure Status = "FAILURE"
	// StatusAborted defines the status of a build that was stopped.
	StatusAborted Status = "ABORTED"
	// StatusUnstable defines the status of a build that finished with warnings.
	StatusUnstable Status = "UNSTABLE"
	// StatusBlocked defines the status of a build that waits for another build to release a lock.
	StatusBlocked Status = "BLOCKED"
	// StatusCollapsed defines the status of a build that was superseded by a newer one.
	StatusCollapsed Status = "COLLAPSED"
	// StatusFrozen defines the status of a build that waits for a freeze window to end.
	StatusFrozen Status = "FROZEN"

	// StatusEnabled defines the state of a job that may produce builds.
	StatusEnabled Status = "ENABLED"
	// StatusDisabled defines the state of a job that must not produce builds.
	StatusDisabled Status = "DISABLED"
)

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusQueued, StatusRunning, StatusSuccess, StatusFailure, StatusAborted,
		StatusUnstable, StatusBlocked, StatusCollapsed, StatusFrozen, StatusEnabled, StatusDisabled:
		return true
	}
	return false
}

// IsCreated reports whether the state is CREATED.
func (s Status) IsCreated() bool {
	return s == StatusCreated
}

// IsQueued reports whether the state is QUEUED.
func (s Status) IsQueued() bool {
	return s == StatusQueued
}

// IsRunning reports whether the state is RUNNING.
func (s Status) IsRunning() bool {
	return s == StatusRunning
}

// IsSuccess reports whether the state is SUCCESS.
func (s Status) IsSuccess() bool {
	return s == StatusSuccess
}

// IsFailure reports whether the state is FAILURE.
func (s Status) IsFailure() bool {
	return s == StatusFailure
}

// IsAborted reports whether the state is ABORTED.
func (s Status) IsAborted() bool {
	return s == StatusAborted
}

// IsUnstable reports whether the state is UNSTABLE.
func (s Status) IsUnstable() bool {
	return s == StatusUnstable
}

// IsBlocked reports whether the state is BLOCKED.
func (s Status) IsBlocked() bool {
	return s == StatusBlocked
}

// IsCollapsed reports whether the state is COLLAPSED.
func (s Status) IsCollapsed() bool {
	return s == StatusCollapsed
}

// IsFrozen reports whether the state is FROZEN.
func (s Status) IsFrozen() bool {
	return s == StatusFrozen
}

// IsEnabled reports whether the state is ENABLED.
func (s Status) IsEnabled() bool {
	return s == StatusEnabled
}

// IsPending reports whether the build has not been handed over yet.
// An empty status is treated as CREATED.
func (s Status) IsPending() bool {
	return s == "" || s == StatusCreated
}

// IsTerminal reports whether the status is final for join purposes.
func IsTerminal(s Status) bool {
	switch s {
	case StatusSuccess, StatusFailure, StatusAborted, StatusUnstable:
		return true
	}
	return false
}

// IsFailed reports whether the status is terminal but not successful.
func IsFailed(s Status) bool {
	return IsTerminal(s) && s != StatusSuccess
}
