// Package session holds the classification context of one translation.
//
// A Session is created per translated query and threaded explicitly
// through the nominator, the projection visitor and the emitter. Nested
// subquery translations receive the same Session, so parameters and alias
// reconstructions registered by an inner translation are visible to the
// outer one. Nomination sets are never stored here; each pass owns its own.
//
// The registry and resolver a Session reads must be immutable: sessions of
// concurrent translations share them without locking.
package session
