package errs

import "fmt"

// DecodeError reports stored bytes that could not be parsed at the current schema version.
// It is recoverable: the store backs the bytes up and starts empty.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode %q: %v", e.Key, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// MigrationError reports bytes that could not be parsed under their declared schema version.
type MigrationError struct {
	From int
	Err  error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migrate from schema v%d: %v", e.From, e.Err)
}
func (e *MigrationError) Unwrap() error { return e.Err }

// RemoteFetchError aborts the current sync cycle; local state is left untouched.
type RemoteFetchError struct {
	Kind string
	Err  error
}

func (e *RemoteFetchError) Error() string { return fmt.Sprintf("fetch %s: %v", e.Kind, e.Err) }
func (e *RemoteFetchError) Unwrap() error { return e.Err }

// RemoteWriteError reports a failed batch write. The merged local state is still saved,
// and the unsent changes stay locally newer so the next cycle uploads them again.
type RemoteWriteError struct {
	Kind  string
	Count int
	Err   error
}

func (e *RemoteWriteError) Error() string {
	return fmt.Sprintf("write %d %s record(s): %v", e.Count, e.Kind, e.Err)
}
func (e *RemoteWriteError) Unwrap() error { return e.Err }

// RecordDecodeError describes a single malformed remote record. It is skipped and
// counted, never propagated out of a fetch.
type RecordDecodeError struct {
	Kind string
	ID   string
	Err  error
}

func (e *RecordDecodeError) Error() string {
	return fmt.Sprintf("decode %s record %q: %v", e.Kind, e.ID, e.Err)
}
func (e *RecordDecodeError) Unwrap() error { return e.Err }
