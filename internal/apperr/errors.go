package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidGeometry = errors.New("invalid geometry")
	ErrEmptyExport     = errors.New("nothing to export")
	ErrDecode          = errors.New("cannot decode image")
)
