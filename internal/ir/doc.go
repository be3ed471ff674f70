// Package ir provides the value and domain types shared by every pinbase
// package.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Claim values are the sealed IRValue union; there is no float variant.
//     Non-integral numbers are stored as exact decimal text (IRDecimal).
//   - Ordering of claims uses the logical seq assigned by the store, never
//     wall-clock timestamps alone.
//   - Every map that reaches a digest or a snapshot is serialized with sorted
//     keys, so identical inputs produce byte-identical output.
//   - All JSON tags use snake_case.
package ir
