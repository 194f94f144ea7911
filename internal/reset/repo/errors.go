package repo

import "errors"

var ErrNotFound = errors.New("reset token not found")
