package roster

import "errors"

var (
	ErrAccountCreationFailed = errors.New("account creation failed")
	ErrEmptyResponse         = errors.New("empty extraction response")
)
