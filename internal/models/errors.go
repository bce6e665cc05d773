package models

import "errors"

// ErrValidation marks a malformed entry or request. Wrap it with context via
// fmt.Errorf and check it with errors.Is.
var ErrValidation = errors.New("validation failed")
