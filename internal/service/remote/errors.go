package remote

import "fmt"

// DialError reports a failure to reach or authenticate with the remote host.
type DialError struct {
	Host  string
	Cause error
}

func (e *DialError) Error() string {
	return fmt.Sprintf("ssh connection to %s failed: %v", e.Host, e.Cause)
}
func (e *DialError) Unwrap() error { return e.Cause }

// SpawnError reports that the remote shell rejected the detached command.
type SpawnError struct {
	Host    string
	Command string
	Cause   error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("remote spawn on %s failed (%s): %v", e.Host, e.Command, e.Cause)
}
func (e *SpawnError) Unwrap() error { return e.Cause }
