package browser

import "errors"

var (
	// ErrDisposed indicates an operation was attempted after teardown.
	ErrDisposed = errors.New("browser model is disposed")

	// ErrCancelled indicates the user declined the large-file confirmation.
	ErrCancelled = errors.New("upload cancelled by user")

	// ErrNotUploaded indicates the user declined to overwrite an existing entry.
	ErrNotUploaded = errors.New("file not uploaded")

	// ErrUploadInProgress indicates the destination already has an
	// upload in flight.
	ErrUploadInProgress = errors.New("upload already in progress")

	// ErrFileTooLarge indicates an oversized file on a backend without
	// chunked saves.
	ErrFileTooLarge = errors.New("file exceeds upload size limit")
)
