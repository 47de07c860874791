// Package ir provides the constant value model shared by the expression
// graph and the target IR, plus canonical encoding for plan identity.
//
// This package contains value types and encoders only. All other internal
// packages may import ir; ir imports nothing internal. This keeps the value
// model the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - IRValue is a sealed interface; type switches over it are exhaustive
//   - Floats are allowed as query constants but are canonicalized with the
//     shortest round-trip representation so plan keys stay deterministic
//   - Object keys are ordered by UTF-16 code units (RFC 8785)
//   - Plan keys are SHA-256 over canonical JSON with domain separation
package ir
