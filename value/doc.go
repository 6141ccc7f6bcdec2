// Package value provides the dynamic value model used by the dirty-check engine.
//
// Watched data is represented as a closed set of value kinds modelled on the
// JavaScript data model: undefined, null, booleans, numbers (float64 with NaN
// and infinities), strings, functions, arrays, plain objects, dates, regular
// expressions, typed arrays, array buffers, boxed primitives, blobs, host nodes
// and windows. Object-like kinds are pointers, so identity is pointer identity.
//
// The package has three jobs:
//
//   - Classification: Classify and the Is* predicates answer "what kind of
//     value is this" without reflection on host types.
//   - Comparison: Same is reference identity (===), Equals is deep structural
//     equality with NaN handling and for-in style key enumeration.
//   - Copying: Copy produces an independent deep clone that preserves cycles,
//     sharing and prototypes; ShallowCopy is the one-level snapshot used by
//     collection watches.
//
// # Enumeration Order
//
// Objects keep their own keys in insertion order. Keys inherited from a
// prototype are visited after own keys, nearest prototype first, skipping
// keys shadowed by a nearer object. This matches for-in enumeration for
// string keys.
//
// # Cycles
//
// Copy and MarshalCanonical detect cycles through an identity map. Equals does
// not: comparing two independent but isomorphic cyclic graphs does not
// terminate. Comparing a graph with itself is fine (identity short-circuit).
//
// This package imports nothing internal; the engine and the tooling layers
// depend on it, never the reverse.
package value
