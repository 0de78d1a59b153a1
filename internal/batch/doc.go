// Package batch encodes and decodes Google API batch envelopes.
//
// A batch envelope is a multipart/mixed HTTP body in which every part is
// itself a serialized HTTP request (application/http). The response mirrors
// the layout: one serialized HTTP response per part, in whatever order the
// provider chooses. Parts can carry a Content-ID header so that responses
// can be matched back to the request that produced them.
//
// Encoding is pure and deterministic. Decoding is tolerant: fragments that
// are not JSON, or whose JSON does not parse, are dropped and reported in
// Result.Skipped rather than failing the whole envelope.
package batch
