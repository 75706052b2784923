// Package dataset turns an annotated target matrix and a reference genome
// into random-access training samples.
//
// Each variable (column) of the AnnData is a logical genomic region.  An
// IndexManager expands the logical regions into augmented keys, one per
// (strand, deterministic shift) variant, and a SequenceLoader resolves a key
// plus a per-access stochastic shift to exactly end-start bases.  AnnDataset
// combines the two with the target matrix; MetaAnnDataset merges several
// AnnDatasets into one weighted index space.
//
// Sequences are returned one-hot encoded, row-major (len, 4), with channels
// in A, C, G, T order.  N and any other non-ACGT base encode as an all-zero
// row.
//
// Get is safe for concurrent use.  ShuffleIndices is not, and must only be
// called between epochs.
package dataset
