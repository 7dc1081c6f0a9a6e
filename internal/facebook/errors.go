package facebook

// ServiceError is a domain failure raised by the facade itself, as opposed
// to a transport or platform error passed through from the graph client.
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string { return e.Message }

// Is matches service errors by message so callers can use the sentinels
// below with errors.Is.
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	return ok && t.Message == e.Message
}

var (
	// ErrPageAccessDenied is returned when the user manages no page with the
	// requested id.
	ErrPageAccessDenied = &ServiceError{Message: "the user does not have access to this page"}

	// ErrInvalidAccessToken is returned when the platform reports a token
	// as invalid.
	ErrInvalidAccessToken = &ServiceError{Message: "the access token is invalid"}
)
