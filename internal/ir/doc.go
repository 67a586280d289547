// Package ir provides the serializable description of synthesis networks
// and plugin metadata, plus the canonical encoding used to hash them.
//
// This package contains data types only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Property values are a sealed Value union (Null, Str, Int, Real, Bool,
//     Array, Object); NaN and infinities cannot be encoded
//   - All JSON tags use snake_case
//   - Content hashes are computed over canonical JSON only (MarshalCanonical)
//     with a domain-separated SHA-256
package ir
