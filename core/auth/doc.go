// Package auth implements connection admission for the relay.
//
// When configured with a shared secret the Gate requires an HS256 token,
// taken from the Authorization bearer header or, failing that, the "token"
// query parameter. Accepted tokens yield their decoded payload as a Principal.
// Without a secret every connection is admitted anonymously.
//
// Rejections wrap ErrAdmissionRejected and are counted through WithOnReject.
// Authorization beyond admission is not performed.
package auth
