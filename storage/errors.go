package storage

import "errors"

var (
	ErrNotFound     = errors.New("storage: not found")
	ErrInvalidHash  = errors.New("storage: invalid hash")
	ErrHashMismatch = errors.New("storage: hash mismatch")
	ErrImmutable    = errors.New("storage: immutable object mismatch")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
