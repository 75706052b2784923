package anndata

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gota/gota/series"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/mtvector/CREsted/region"
	"github.com/mtvector/CREsted/util"
	"gonum.org/v1/gonum/mat"
)

// ReadBED reads the first three columns of a BED file as unstranded regions.
// Blank lines and lines starting with '#', "track" or "browser" are skipped.
func ReadBED(ctx context.Context, path string) (regions []region.Region, err error) {
	err = util.WithReader(ctx, path, func(r io.Reader) error {
		regions, err = ParseBED(r)
		return err
	})
	return
}

// ParseBED is ReadBED for an io.Reader.
func ParseBED(r io.Reader) ([]region.Region, error) {
	var (
		regions []region.Region
		scanner = bufio.NewScanner(r)
		lineNum int
	)
	scanner.Buffer(nil, 1<<20)
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || line[0] == '#' || strings.HasPrefix(line, "track") || strings.HasPrefix(line, "browser") {
			continue
		}
		cols := strings.SplitN(line, "\t", 4)
		if len(cols) < 3 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("bed line %d: expected at least 3 columns: %q", lineNum, line))
		}
		start, err1 := strconv.Atoi(cols[1])
		end, err2 := strconv.Atoi(cols[2])
		if err1 != nil || err2 != nil || start < 0 || end <= start {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("bed line %d: bad coordinates: %q", lineNum, line))
		}
		regions = append(regions, region.Region{Chrom: cols[0], Start: start, End: end})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return regions, nil
}

// TopicOpts controls ImportTopics.
type TopicOpts struct {
	// Topics restricts the import to the named topics (file stems), in
	// topic-file order.  Empty means all.
	Topics []string
	// Compress stores X as a CSC matrix.
	Compress bool
}

// topicLess orders topic file stems: names of the form "<prefix>_<int>"
// come first by their number, then everything else alphabetically.
func topicLess(a, b string) bool {
	na, oka := topicNumber(a)
	nb, okb := topicNumber(b)
	switch {
	case oka && okb:
		if na != nb {
			return na < nb
		}
		return a < b
	case oka != okb:
		return oka
	}
	return a < b
}

func topicNumber(stem string) (int, bool) {
	parts := strings.Split(stem, "_")
	if len(parts) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(parts[1])
	return n, err == nil
}

func fileStem(path string) string {
	base := filepath.Base(path)
	if i := strings.Index(base, "."); i >= 0 {
		return base[:i]
	}
	return base
}

// ImportTopics builds a binary topics × regions AnnData.  regionsBED lists
// the consensus regions (the variables).  Every *.bed file in topicsDir is
// one topic (an observation); X[t, r] is 1 iff region r appears in topic t's
// file with identical coordinates.
//
// Var gets "chr", "start" and "end" columns, Obs gets "file_path".
func ImportTopics(ctx context.Context, topicsDir, regionsBED string, opts TopicOpts) (*AnnData, error) {
	consensus, err := ReadBED(ctx, regionsBED)
	if err != nil {
		return nil, err
	}
	if len(consensus) == 0 {
		return nil, errors.E(errors.Invalid, "import topics: no regions in", regionsBED)
	}
	var (
		varNames = make([]string, len(consensus))
		column   = make(map[string]int, len(consensus))
	)
	for j, r := range consensus {
		varNames[j] = r.String()
		if _, dup := column[varNames[j]]; dup {
			return nil, errors.E(errors.Invalid, "import topics: duplicate region", varNames[j], "in", regionsBED)
		}
		column[varNames[j]] = j
	}

	var paths []string
	lister := file.List(ctx, topicsDir, false)
	for lister.Scan() {
		if strings.HasSuffix(lister.Path(), ".bed") {
			paths = append(paths, lister.Path())
		}
	}
	if err := lister.Err(); err != nil {
		return nil, errors.E(err, "list", topicsDir)
	}
	sort.SliceStable(paths, func(i, j int) bool { return topicLess(fileStem(paths[i]), fileStem(paths[j])) })
	if len(opts.Topics) > 0 {
		want := map[string]bool{}
		for _, t := range opts.Topics {
			want[t] = true
		}
		var kept []string
		for _, p := range paths {
			if want[fileStem(p)] {
				kept = append(kept, p)
				delete(want, fileStem(p))
			}
		}
		if len(want) > 0 {
			var missing []string
			for t := range want {
				missing = append(missing, t)
			}
			sort.Strings(missing)
			return nil, errors.E(errors.NotExist, fmt.Sprintf("import topics: no file for topics %v in %s", missing, topicsDir))
		}
		paths = kept
	}
	if len(paths) == 0 {
		return nil, errors.E(errors.NotExist, "import topics: no .bed files in", topicsDir)
	}

	x := mat.NewDense(len(paths), len(consensus), nil)
	obsNames := make([]string, len(paths))
	for t, p := range paths {
		obsNames[t] = fileStem(p)
		regions, err := ReadBED(ctx, p)
		if err != nil {
			return nil, err
		}
		var hits int
		for _, r := range regions {
			if j, ok := column[r.String()]; ok {
				x.Set(t, j, 1)
				hits++
			}
		}
		if hits == 0 {
			log.Error.Printf("import topics: topic %s shares no regions with %s", obsNames[t], regionsBED)
		}
		log.Debug.Printf("import topics: %s: %d/%d regions in consensus", obsNames[t], hits, len(regions))
	}

	var xm mat.Matrix = x
	if opts.Compress {
		xm = CSCFromDense(x)
	}
	ad, err := New(xm, obsNames, varNames)
	if err != nil {
		return nil, err
	}
	chroms := make([]string, len(consensus))
	starts := make([]int, len(consensus))
	ends := make([]int, len(consensus))
	for j, r := range consensus {
		chroms[j], starts[j], ends[j] = r.Chrom, r.Start, r.End
	}
	for _, s := range []series.Series{
		series.New(chroms, series.String, "chr"),
		series.New(starts, series.Int, "start"),
		series.New(ends, series.Int, "end"),
	} {
		if err := ad.SetVarColumn(s); err != nil {
			return nil, err
		}
	}
	if err := ad.SetObsColumn(series.New(paths, series.String, "file_path")); err != nil {
		return nil, err
	}
	log.Printf("import topics: %d topics × %d regions", ad.NObs(), ad.NVar())
	return ad, nil
}
