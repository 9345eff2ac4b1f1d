package decode

import (
	"context"
	"fmt"
)

// Decoder turns a wrapped image payload into a raster file. Implementations
// write dest + Ext() and leave nothing behind on failure.
type Decoder interface {
	Decode(ctx context.Context, payload []byte, dest string) error
	Ext() string
}

// Job is one payload waiting to be decoded.
type Job struct {
	Dest    string // output path without extension
	Payload []byte
	Name    string // for logs and progress
}

// DecodeError records a job the decoder rejected.
type DecodeError struct {
	Name string
	Dest string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
