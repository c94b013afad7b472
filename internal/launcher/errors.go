package launcher

import "fmt"

// LaunchError means the process itself could not be started.
type LaunchError struct {
	TaskID string
	Target Target
	Cause  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s (%s) failed: %v", e.TaskID, e.Target, e.Cause)
}

func (e *LaunchError) Unwrap() error {
	return e.Cause
}

// SentinelDirError means the executor-side sentinel path would not map back
// to the file the monitor polls.
type SentinelDirError struct {
	Dir    string
	Remote string
	Back   string
	Cause  error
}

func (e *SentinelDirError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("sentinel dir %s: %v", e.Dir, e.Cause)
	}
	return fmt.Sprintf("sentinel dir %s is written as %s by the executor, which is %s here", e.Dir, e.Remote, e.Back)
}

func (e *SentinelDirError) Unwrap() error {
	return e.Cause
}
