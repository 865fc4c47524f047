// Package service contains the labelling use cases. It orchestrates the
// stores in internal/store and the pure algorithms in
// internal/domain/batching to partition uploads, run the claim lifecycle,
// record labels, aggregate them and credit completions.
//
// Operations that touch more than one record run through a store.Transactor
// so they commit or roll back as a unit. Identifiers arriving from callers
// are parsed here, and every error can be classified with KindOf:
//
//   - KindNotFound: a job, batch, item, claim or user does not exist
//   - KindMalformedIdentifier: an identifier is not a UUID
//   - KindCapacityExceeded, KindAlreadyClaimed: a claim was refused
//   - KindInvalidState: e.g. unclaiming a completed claim
//   - KindValidation: label values or inputs failed validation
//   - KindUnauthorized: the caller may not act on the resource
//   - KindStoreFailure: anything else
//
// The expiry sweep (RunExpirySweep) is the one operation that logs and
// counts per-claim failures instead of returning them.
package service
