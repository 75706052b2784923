package main

// See doc.go for documentation.

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/mtvector/CREsted/anndata"
	"github.com/mtvector/CREsted/dataloader"
	"github.com/mtvector/CREsted/dataset"
	"github.com/mtvector/CREsted/genome"
)

var (
	genomePath     = flag.String("genome", "", "Reference FASTA, optionally gzipped")
	chromSizesPath = flag.String("chrom-sizes", "", "Two-column chrom<TAB>size file. By default, sizes are taken from the FASTA")
	noChromSizes   = flag.Bool("no-chrom-sizes", false, "Do not clamp windows at contig ends")
	createIndex    = flag.Bool("index", false, "Generate <genome>.fai before opening the genome")
	inMemoryGenome = flag.Bool("in-memory-genome", false, "Load the whole FASTA even if a .fai index exists")

	xPath       = flag.String("x", "", "Target matrix, .npy or .npz")
	xKey        = flag.String("x-key", "", "Array name inside an .npz. By default, 'targets' or the only array")
	transpose   = flag.Bool("transpose", false, "The target matrix is stored regions × outputs")
	varPath     = flag.String("var", "", "Region table (TSV with header); the first column holds region names")
	obsPath     = flag.String("obs", "", "Output table (TSV with header); the first column holds output names")
	topicsDir   = flag.String("topics-dir", "", "Directory of per-topic BED files, used instead of -x")
	regionsPath = flag.String("regions", "", "Consensus region BED, used with -topics-dir")
	topics      = flag.String("topics", "", "Comma-separated subset of topics to import")
	compress    = flag.Bool("compress", false, "Store imported topics as a sparse matrix")

	assignSplit = flag.String("assign-split", "", "If set, assign train/val/test labels first. One of 'region' or 'chr'")
	valSize     = flag.Float64("val-size", 0.1, "Fraction of regions for validation, with -assign-split=region")
	testSize    = flag.Float64("test-size", 0.1, "Fraction of regions for testing, with -assign-split=region")
	valChroms   = flag.String("val-chroms", "", "Comma-separated validation chromosomes, with -assign-split=chr")
	testChroms  = flag.String("test-chroms", "", "Comma-separated test chromosomes, with -assign-split=chr")

	split         = flag.String("split", "", "Use only regions with this split label")
	inMemory      = flag.Bool("in-memory", true, "Cache all sequences at startup")
	compressCache = flag.Bool("compress-cache", false, "Snappy-compress cached sequences")
	randomRC      = flag.Bool("random-rc", false, "Reverse-complement samples at random")
	alwaysRC      = flag.Bool("always-rc", false, "Add the reverse complement of every region")
	maxShift      = flag.Int("max-shift", 0, "Maximum stochastic shift in bases")
	detShift      = flag.Bool("deterministic-shift", false, "Add shifted copies of every region")
	nShifts       = flag.Int("n-shifts", 0, "Number of shifted copies on each side, with -deterministic-shift")
	shiftStride   = flag.Int("shift-stride", dataset.DefaultAnnDatasetOpts.ShiftStride, "Distance between shifted copies")
	seed          = flag.Int64("seed", 0, "Random seed")
	parallelism   = flag.Int("parallelism", runtime.NumCPU(), "Number of concurrent fetches")

	dumpDir = flag.String("dump", "", "If set, write the first -dump-n samples to this directory as x.npy and y.npy")
	dumpN   = flag.Int("dump-n", 16, "Number of samples to dump")
)

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func loadAnnData(ctx context.Context) (*anndata.AnnData, error) {
	if *topicsDir != "" {
		if *regionsPath == "" {
			return nil, errors.E(errors.Invalid, "-topics-dir requires -regions")
		}
		return anndata.ImportTopics(ctx, *topicsDir, *regionsPath, anndata.TopicOpts{
			Topics:   splitList(*topics),
			Compress: *compress,
		})
	}
	if *xPath == "" || *varPath == "" {
		return nil, errors.E(errors.Invalid, "either -topics-dir or both -x and -var must be set")
	}
	return anndata.Load(ctx, anndata.LoadOpts{
		X:         *xPath,
		XKey:      *xKey,
		Transpose: *transpose,
		Var:       *varPath,
		Obs:       *obsPath,
	})
}

func main() {
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() > 0 {
		log.Fatalf("unparsed flags, please check flag syntax: '%s'", strings.Join(flag.Args(), " "))
	}
	if *genomePath == "" {
		log.Fatalf("-genome must be set")
	}
	ctx := vcontext.Background()

	ad, err := loadAnnData(ctx)
	if err != nil {
		log.Fatalf("load targets: %v", err)
	}
	log.Printf("%v", ad)
	if *assignSplit != "" {
		opts := anndata.DefaultSplitOpts
		opts.Strategy = *assignSplit
		opts.ValSize = *valSize
		opts.TestSize = *testSize
		opts.ValChroms = splitList(*valChroms)
		opts.TestChroms = splitList(*testChroms)
		opts.Seed = *seed
		if err := anndata.TrainValTestSplit(ad, opts); err != nil {
			log.Fatalf("assign split: %v", err)
		}
	}

	if *createIndex {
		if err := genome.CreateIndex(ctx, *genomePath); err != nil {
			log.Fatalf("index %s: %v", *genomePath, err)
		}
	}
	g, err := genome.Open(ctx, *genomePath, genome.Opts{
		ChromSizesPath: *chromSizesPath,
		NoChromSizes:   *noChromSizes,
		InMemory:       *inMemoryGenome,
	})
	if err != nil {
		log.Fatalf("open genome: %v", err)
	}
	defer func() {
		if err := g.Close(ctx); err != nil {
			log.Error.Printf("close %s: %v", *genomePath, err)
		}
	}()

	opts := dataset.DefaultAnnDatasetOpts
	opts.Split = *split
	opts.InMemory = *inMemory
	opts.CompressCache = *compressCache
	opts.RandomReverseComplement = *randomRC
	opts.AlwaysReverseComplement = *alwaysRC
	opts.MaxStochasticShift = *maxShift
	opts.DeterministicShift = *detShift
	opts.NShifts = *nShifts
	opts.ShiftStride = *shiftStride
	opts.Seed = *seed
	opts.Parallelism = *parallelism
	ds, err := dataset.NewAnnDataset(ctx, ad, g, opts)
	if err != nil {
		log.Fatalf("build dataset: %v", err)
	}
	fmt.Fprintln(os.Stdout, ds)
	fmt.Fprintf(os.Stdout, "augmented index checksum: %s\n", ds.Index().Checksum())

	if *dumpDir != "" {
		lopts := dataloader.DefaultOpts
		lopts.BatchSize = *dumpN
		lopts.Parallelism = *parallelism
		if err := dump(ctx, ds, *dumpDir, lopts); err != nil {
			log.Fatalf("dump: %v", err)
		}
	}
	log.Debug.Printf("exiting")
}
