package genome

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
)

// GenerateIndex writes a samtools-compatible .fai index for the FASTA data in
// in.  The result can be passed to NewIndexedFasta.
func GenerateIndex(out io.Writer, in io.Reader) (err error) {
	var (
		w          = tsv.NewWriter(out)
		r          = bufio.NewReader(in)
		cur        faiEntry
		open       bool
		lastShort  bool // the previous data line was shorter than LineBases
		byteOffset int64
	)
	setErr := func(e error) {
		if e != nil && err == nil {
			err = e
		}
	}
	flush := func() {
		if !open {
			return
		}
		w.WriteString(cur.Name)
		w.WriteInt64(cur.Length)
		w.WriteInt64(cur.Offset)
		w.WriteInt64(cur.LineBases)
		w.WriteInt64(cur.LineWidth)
		setErr(w.EndLine())
	}
	for err == nil {
		full, e := r.ReadBytes('\n')
		if e != nil && e != io.EOF {
			setErr(e)
			break
		}
		byteOffset += int64(len(full))
		line := bytes.TrimRight(full, "\r\n")
		if len(line) > 0 {
			if line[0] == '>' {
				flush()
				cur = faiEntry{Name: strings.Split(string(line[1:]), " ")[0], Offset: byteOffset}
				open, lastShort = true, false
			} else if !open {
				setErr(errors.E(errors.Invalid, "malformed FASTA file: sequence data before the first header"))
			} else {
				if cur.LineBases == 0 {
					cur.LineBases, cur.LineWidth = int64(len(line)), int64(len(full))
				} else if lastShort || int64(len(line)) > cur.LineBases {
					setErr(errors.E(errors.Invalid, "FASTA sequence", cur.Name, "has uneven line lengths"))
				}
				lastShort = int64(len(line)) < cur.LineBases
				cur.Length += int64(len(line))
			}
		}
		if e == io.EOF {
			break
		}
	}
	if byteOffset == 0 {
		setErr(errors.E(errors.Invalid, "empty FASTA file"))
	}
	if err == nil {
		flush()
	}
	setErr(w.Flush())
	return
}

// CreateIndex writes path+".fai" for the uncompressed FASTA file at path.
func CreateIndex(ctx context.Context, path string) (err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return errors.E(err, "open", path)
	}
	defer func() {
		if cerr := in.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	out, err := file.Create(ctx, path+".fai")
	if err != nil {
		return errors.E(err, "create", path+".fai")
	}
	if err = GenerateIndex(out.Writer(ctx), in.Reader(ctx)); err != nil {
		_ = out.Close(ctx)
		return errors.E(err, path)
	}
	return out.Close(ctx)
}
