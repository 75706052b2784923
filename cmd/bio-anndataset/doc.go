/*
bio-anndataset builds a training dataset from a reference genome and an
annotated target matrix, prints a summary of it, and optionally dumps a batch
of one-hot sequences and targets as .npy files.

The targets come either from an npy/npz matrix with var (and optionally obs)
tables:

  bio-anndataset -genome hg38.fa -x targets.npz -transpose -var regions.tsv \
    -split train -max-shift 3 -always-rc

or from a directory of per-topic BED files and a consensus region BED:

  bio-anndataset -genome hg38.fa -topics-dir topics/ -regions consensus.bed \
    -assign-split chr -val-chroms chr8 -test-chroms chr9 -split val

With -dump dir, the first -dump-n samples are written to dir/x.npy (n, len, 4)
and dir/y.npy (n, outputs).  With -index, a .fai index is generated for
-genome before it is opened.
*/
package main
