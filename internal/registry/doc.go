// Package registry holds the versioned set of endpoints currently being probed.
//
// A [Registry] is replaced wholesale on every configuration load and is never
// mutated in place. Readers always observe one complete [Version]: a snapshot
// taken while a load is in progress returns either the old or the new set,
// never a mix of both.
package registry
