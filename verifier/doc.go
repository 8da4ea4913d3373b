// Package verifier authorizes signed metadata requests.
//
// A request carries a signer id, a signature and a timestamp. Verifier checks,
// in order and before any store access: presence of the credentials, that the
// signer is registered, that the signer may access the table, that the
// timestamp is inside the freshness window, that the signature covers the
// signing payload, and finally, for writes, that the same payload has not been
// seen before.
//
// Every failure is an *interfaces.AuthError so callers can log the specific
// kind while answering clients with a single generic "unauthorized".
package verifier
