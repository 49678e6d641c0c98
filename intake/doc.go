// Package intake orchestrates the submission pipeline: typed parsing of the
// multipart form, the gate sequence (honeypot, captcha, rate token,
// moderation, attachment policy, reply resolution), and the two-phase
// post/edit protocol that assigns every accepted submission its permanent
// public identifier.
//
// Each submission is handled as an independent, stateless invocation. The
// only correctness-critical shared state lives in the client-held signed
// rate-limit token and in the channel platform's own message identifier
// assignment, so concurrent submissions need no coordination at all.
package intake
