package services

import "errors"

// Kinds. Handlers map these to status codes.
var (
	ErrValidation          = errors.New("validation failed")
	ErrDuplicateIdentity   = errors.New("duplicate identity")
	ErrAccountNotFound     = errors.New("User not found")
	ErrNotVerified         = errors.New("Please verify your email first")
	ErrInvalidCredentials  = errors.New("Invalid password")
	ErrInvalidToken        = errors.New("Invalid or expired token")
	ErrForbidden           = errors.New("not authorized")
	ErrPostNotFound        = errors.New("Post not found")
	ErrServerMisconfigured = errors.New("Server configuration error")
	ErrUpload              = errors.New("upload failed")
)

// Specific errors. Each wraps one of the kinds above.
var (
	ErrMissingFields    = kind(ErrValidation, "All fields are required")
	ErrPasswordMismatch = kind(ErrValidation, "Passwords do not match")
	ErrEmailTaken       = kind(ErrDuplicateIdentity, "Email already registered")
	ErrUsernameTaken    = kind(ErrDuplicateIdentity, "Username already taken")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func kind(k error, msg string) error {
	return &kindError{kind: k, msg: msg}
}

// Validation returns an ErrValidation carrying a caller facing message.
func Validation(msg string) error {
	return kind(ErrValidation, msg)
}

// ErrorMessage returns the user facing text of err. For kinded errors this is the
// specific message rather than the kind.
func ErrorMessage(err error) string {
	if msg, ok := SpecificMessage(err); ok {
		return msg
	}
	return err.Error()
}

// SpecificMessage reports the message of the first kinded error in err's chain.
func SpecificMessage(err error) (string, bool) {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.msg, true
	}
	return "", false
}
