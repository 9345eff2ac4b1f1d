package integrations

import "context"

// Processor post-processes an organized directory.
type Processor interface {
	Process(ctx context.Context, dir string) error
}

var (
	_ Processor = (*JPEGConverter)(nil)
	_ Processor = (*EPubBuilder)(nil)
)
