package storage

import "errors"

var (
	// ErrNotFound запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists запись с таким уникальным ключом уже есть.
	ErrAlreadyExists = errors.New("already exists")
)
