package decode

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// DefaultDWebP is the decoder binary looked up on PATH.
const DefaultDWebP = "dwebp"

// ExecDecoder hands payloads to the libwebp dwebp tool. The payload is
// staged in a temporary file beside the destination.
type ExecDecoder struct {
	Binary string
}

func NewExecDecoder(binary string) *ExecDecoder {
	if binary == "" {
		binary = DefaultDWebP
	}
	return &ExecDecoder{Binary: binary}
}

func (d *ExecDecoder) Ext() string { return ".png" }

// Available reports whether the binary can be found.
func (d *ExecDecoder) Available() error {
	_, err := exec.LookPath(d.Binary)
	return errors.Wrapf(err, "find %s", d.Binary)
}

func (d *ExecDecoder) Decode(ctx context.Context, payload []byte, dest string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".payload-*.webp")
	if err != nil {
		return errors.WithStack(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return errors.WithStack(err)
	}
	if err := tmp.Close(); err != nil {
		return errors.WithStack(err)
	}

	out := dest + d.Ext()
	cmd := exec.CommandContext(ctx, d.Binary, tmp.Name(), "-o", out) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		_ = os.Remove(out)
		return errors.Wrapf(err, "%s: %s", d.Binary, strings.TrimSpace(string(output)))
	}
	return nil
}
