package domain

import "fmt"

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// UnauthenticatedError indicates a missing, invalid or expired credential.
// Challenge carries the WWW-Authenticate hint for the response.
type UnauthenticatedError struct {
	Reason    string
	Challenge string
}

func (e UnauthenticatedError) Error() string {
	if e.Reason == "" {
		return "unauthenticated"
	}
	return fmt.Sprintf("unauthenticated: %s", e.Reason)
}

func (e UnauthenticatedError) Is(target error) bool {
	_, ok := target.(UnauthenticatedError)
	if ok {
		return true
	}
	_, ok = target.(*UnauthenticatedError)
	return ok
}

var ErrUnauthenticated = UnauthenticatedError{}

// InvalidClaimsError indicates malformed verified claims. This is an
// integration fault on our side of the provider boundary, not a client
// error.
type InvalidClaimsError struct {
	Reason string
}

func (e InvalidClaimsError) Error() string {
	if e.Reason == "" {
		return "invalid claims"
	}
	return fmt.Sprintf("invalid claims: %s", e.Reason)
}

func (e InvalidClaimsError) Is(target error) bool {
	_, ok := target.(InvalidClaimsError)
	if ok {
		return true
	}
	_, ok = target.(*InvalidClaimsError)
	return ok
}

var ErrInvalidClaims = InvalidClaimsError{}

// ForbiddenError indicates the caller is authenticated but not allowed to
// act on the target. The message must not reveal anything about the target
// account.
type ForbiddenError struct {
	Reason string
}

func (e ForbiddenError) Error() string {
	if e.Reason == "" {
		return "forbidden"
	}
	return fmt.Sprintf("forbidden: %s", e.Reason)
}

func (e ForbiddenError) Is(target error) bool {
	_, ok := target.(ForbiddenError)
	if ok {
		return true
	}
	_, ok = target.(*ForbiddenError)
	return ok
}

var ErrForbidden = ForbiddenError{}

// InvalidActivityError indicates an envelope that fails structural checks
// before submission.
type InvalidActivityError struct {
	Reason string
}

func (e InvalidActivityError) Error() string {
	if e.Reason == "" {
		return "invalid activity"
	}
	return fmt.Sprintf("invalid activity: %s", e.Reason)
}

func (e InvalidActivityError) Is(target error) bool {
	_, ok := target.(InvalidActivityError)
	if ok {
		return true
	}
	_, ok = target.(*InvalidActivityError)
	return ok
}

var ErrInvalidActivity = InvalidActivityError{}

// StorageError indicates the backing store was unavailable or timed out.
// The only retryable kind in the taxonomy; callers must re-resolve rather
// than assume a write happened.
type StorageError struct {
	Op  string
	Err error
}

func (e StorageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("storage error: %s", e.Op)
	}
	return fmt.Sprintf("storage error: %s: %v", e.Op, e.Err)
}

func (e StorageError) Unwrap() error { return e.Err }

func (e StorageError) Is(target error) bool {
	_, ok := target.(StorageError)
	if ok {
		return true
	}
	_, ok = target.(*StorageError)
	return ok
}

var ErrStorage = StorageError{}

// SubmissionRejectedError indicates the delivery bus declined an activity.
// Returned to the caller verbatim, never retried automatically.
type SubmissionRejectedError struct {
	Reason string
}

func (e SubmissionRejectedError) Error() string {
	if e.Reason == "" {
		return "submission rejected"
	}
	return fmt.Sprintf("submission rejected: %s", e.Reason)
}

func (e SubmissionRejectedError) Is(target error) bool {
	_, ok := target.(SubmissionRejectedError)
	if ok {
		return true
	}
	_, ok = target.(*SubmissionRejectedError)
	return ok
}

var ErrSubmissionRejected = SubmissionRejectedError{}
