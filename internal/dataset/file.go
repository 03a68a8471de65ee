package dataset

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geo-enrich/internal/model"
)

const writeBufSize = 64 * 1024

// LoadOption configures Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	charset string
}

// WithCharset decodes CSV input from the named charset. XLSX ignores it.
func WithCharset(name string) LoadOption {
	return func(o *loadOptions) {
		o.charset = name
	}
}

// Load reads the dataset at path; the extension selects the codec.
func Load(ctx context.Context, path string, opts ...LoadOption) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	format, err := FormatFromPath(path)
	if err != nil {
		return nil, &model.DataAccessError{Op: "load", Path: path, Err: err}
	}

	if _, err := os.Stat(path); err != nil {
		return nil, &model.DataAccessError{Op: "load", Path: path, Err: eris.Wrap(err, "dataset: stat")}
	}

	var d *Dataset
	switch format {
	case FormatXLSX:
		d, err = openXLSX(path)
	case FormatCSV:
		d, err = loadCSV(path, o.charset)
	}
	if err != nil {
		return nil, &model.DataAccessError{Op: "load", Path: path, Err: err}
	}
	return d, nil
}

func loadCSV(path, charset string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: open csv")
	}
	defer f.Close() //nolint:errcheck
	return DecodeCSVCharset(f, charset)
}

// Encode writes d to w in the given format.
func Encode(w io.Writer, d *Dataset, format Format) error {
	switch format {
	case FormatCSV:
		return EncodeCSV(w, d)
	case FormatXLSX:
		return EncodeXLSX(w, d)
	default:
		return eris.Errorf("dataset: unsupported format %q", format)
	}
}

// Persist writes d to path atomically: the data goes to a temporary file in
// the same directory which then replaces path. On failure path keeps its
// previous content.
func Persist(ctx context.Context, d *Dataset, path string) error {
	if err := ctx.Err(); err != nil {
		return &model.DataAccessError{Op: "persist", Path: path, Err: err}
	}
	format, err := FormatFromPath(path)
	if err != nil {
		return &model.DataAccessError{Op: "persist", Path: path, Err: err}
	}
	err = writeAtomic(path, func(w io.Writer) error {
		return Encode(w, d, format)
	})
	if err != nil {
		return &model.DataAccessError{Op: "persist", Path: path, Err: err}
	}
	return nil
}

func writeAtomic(dest string, write func(io.Writer) error) error {
	dir := filepath.Dir(dest)
	perm := os.FileMode(0o644)
	if fi, err := os.Stat(dest); err == nil {
		perm = fi.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, ".geo-enrich-*")
	if err != nil {
		return eris.Wrap(err, "dataset: create temp file")
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	bw := bufio.NewWriterSize(tmp, writeBufSize)
	if err := write(bw); err != nil {
		cleanup()
		return err
	}
	if err := bw.Flush(); err != nil {
		cleanup()
		return eris.Wrap(err, "dataset: flush")
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return eris.Wrap(err, "dataset: fsync")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return eris.Wrap(err, "dataset: close temp file")
	}
	_ = os.Chmod(tmpPath, perm)

	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return eris.Wrap(err, "dataset: replace destination")
	}
	_ = syncDir(dir)
	return nil
}

// syncDir flushes directory metadata so the rename survives a crash. Not all
// platforms support it; callers ignore the error.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close() //nolint:errcheck
	return d.Sync()
}
