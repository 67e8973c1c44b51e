package errors

// RemoteError is an opaque error re-raised by a client after the server
// returned an Err response. The server's diagnostic is not structured — it
// is a human-readable string already formatted server-side — so RemoteError
// carries only that message.
type RemoteError struct {
	message string
}

// NewRemoteError wraps a server-supplied diagnostic string as an error.
func NewRemoteError(message string) *RemoteError {
	return &RemoteError{message: message}
}

func (re *RemoteError) Error() string {
	return re.message
}
