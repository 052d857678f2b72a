package pipeline

import "errors"

// Input errors; everything else surfacing from the service is a failure of an external capability.
var (
	ErrEmptyText     = errors.New("no text provided")
	ErrEmptyFilename = errors.New("empty filename")
	ErrInvalidImage  = errors.New("invalid image")
	ErrMissingInput  = errors.New("missing avatar or audio")
	ErrRunNotFound   = errors.New("run not found")
	ErrUnknownAsset  = errors.New("unknown scene asset")
	ErrNoVideo       = errors.New("video not generated")
)
