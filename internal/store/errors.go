package store

import "errors"

var ErrNilIdentity = errors.New("cannot save nil identity")
