package options

import "errors"

// Parse failures fall into a small closed set so callers can branch with
// errors.Is. Every failure is definitive: nothing is retried and no
// partially populated Options ever escapes.
var (
	// ErrMissingArgument reports an absent required positional.
	ErrMissingArgument = errors.New("missing required argument")

	// ErrInvalidValue reports a flag argument outside its domain.
	ErrInvalidValue = errors.New("invalid value")

	// ErrFileNotFound reports a path option that does not name an
	// existing regular file.
	ErrFileNotFound = errors.New("file not found")

	// ErrNoOptions reports a parse that produced no result at all.
	ErrNoOptions = errors.New("no options provided")
)
