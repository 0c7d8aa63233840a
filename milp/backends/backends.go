// Package backends links optional native optimizers into a binary. Import it
// for side effects; build with -tags highs or -tags glpk to include them.
package backends
