// Package ir provides the typed value model shared by every relcat package.
//
// This package contains value definitions only. All other internal packages
// import ir; ir imports nothing internal, keeping it the foundational layer.
//
// Key design constraints:
//   - Value is a sealed interface: Null, String, Int, Float, Bool, Time,
//     Array and Object are the only implementations
//   - Times are UTC with second precision and persist as RFC 3339 text
//   - Canonical JSON (sorted keys, NFC strings) is the only encoding used
//     for content hashing
package ir
