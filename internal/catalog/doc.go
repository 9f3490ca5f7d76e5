// Package catalog describes the datasets the fetch engine can enumerate.
//
// A Dataset names the API route it is served from and declares an ordered
// list of parameter dimensions. Each Dimension carries the set of values the
// remote API currently accepts for it. Values are data, not code: new
// datasets and new parameter values are added by editing catalog files, which
// may be written in YAML or CUE.
//
// The catalog also records domain knowledge layered over the raw Cartesian
// product: Forbid combinations the API does not serve, and values that are
// still known but no longer Active.
package catalog
