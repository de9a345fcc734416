package conversation

import "errors"

// ErrNotFound indicates the referenced conversation does not exist.
var ErrNotFound = errors.New("conversation not found")
