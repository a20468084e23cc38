package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("there is no user with that email")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid token")
	ErrOTPRequired        = errors.New("please login using your one-time password token")
	ErrOTPNotEnabled      = errors.New("account OTP is not enabled")
	ErrEmailNotConfirmed  = errors.New("please confirm your email first")
	ErrMissingCode        = errors.New("one-time password code is required")
	ErrEmailDelivery      = errors.New("email could not be sent")
)

// ValidationError reports malformed or missing input. The message is safe
// to return to the client.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func errValidation(msg string) error { return &ValidationError{Msg: msg} }
