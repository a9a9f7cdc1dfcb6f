package domain

import "errors"

var (
	// ErrConfig means a required secret or setting is missing.
	ErrConfig = errors.New("configuration error")

	// ErrDecryption means a blob is malformed or was sealed with another key.
	ErrDecryption = errors.New("decryption failed")

	// ErrExtraction marks a single candidate that could not be turned into a post.
	ErrExtraction = errors.New("extraction failed")

	// ErrRender means a profile page could not be navigated or rendered in time.
	ErrRender = errors.New("render failed")

	// ErrDelivery means a notification sink rejected or failed to send a message.
	ErrDelivery = errors.New("delivery failed")

	// ErrNotFound is returned when a stored blob or registry entry does not exist.
	ErrNotFound = errors.New("not found")
)
