// Package util has small helpers shared by the loaders.
package util

import (
	"context"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/klauspost/compress/gzip"
)

// WithReader opens path and calls fn with its contents.  Gzipped files
// (by extension) are decompressed transparently.  The file is closed before
// WithReader returns.
func WithReader(ctx context.Context, path string, fn func(r io.Reader) error) (err error) {
	var in file.File
	if in, err = file.Open(ctx, path); err != nil {
		return errors.E(err, "open", path)
	}
	defer func() {
		if cerr := in.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	reader := io.Reader(in.Reader(ctx))
	switch fileio.DetermineType(path) {
	case fileio.Gzip:
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return errors.E(err, "gunzip", path)
		}
		defer gz.Close() // nolint: errcheck
		reader = gz
	}
	if err = fn(reader); err != nil {
		return errors.E(err, path)
	}
	return nil
}
