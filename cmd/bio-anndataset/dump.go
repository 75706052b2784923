package main

import (
	"context"
	"io"
	"path/filepath"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/kshedden/gonpy"
	"github.com/mtvector/CREsted/dataloader"
	"github.com/mtvector/CREsted/dataset"
	"github.com/mtvector/CREsted/seq"
)

// nopCloser lets gonpy close its writer without closing the file, which
// needs a context.
type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// writeNpy writes data with the given shape to path.
func writeNpy(ctx context.Context, path string, shape []int, data []float32) (err error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create", path)
	}
	defer func() {
		if e := f.Close(ctx); e != nil && err == nil {
			err = errors.E(e, "close", path)
		}
	}()
	w, err := gonpy.NewWriter(nopCloser{f.Writer(ctx)})
	if err != nil {
		return err
	}
	w.Shape = shape
	return w.WriteFloat32(data)
}

// dump writes the first batch of ds to dir/x.npy and dir/y.npy.
func dump(ctx context.Context, ds dataset.RandomAccessDataset, dir string, opts dataloader.Opts) error {
	if ds.Len() < opts.BatchSize {
		opts.BatchSize = ds.Len()
	}
	l, err := dataloader.New(ds, opts)
	if err != nil {
		return err
	}
	b, err := l.Batch(0)
	if err != nil {
		return err
	}
	xPath, yPath := filepath.Join(dir, "x.npy"), filepath.Join(dir, "y.npy")
	if err := writeNpy(ctx, xPath, []int{b.Size, b.SeqLen, seq.NumChannels}, b.X); err != nil {
		return err
	}
	if err := writeNpy(ctx, yPath, []int{b.Size, b.NumOutputs}, b.Y); err != nil {
		return err
	}
	log.Printf("wrote %d samples to %s and %s", b.Size, xPath, yPath)
	return nil
}
