package domain

import "errors"

// ErrNotFound is returned by readers when the requested row does not exist.
var ErrNotFound = errors.New("domain: not found")
