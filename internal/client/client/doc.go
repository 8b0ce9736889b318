// Package client contains the qmsctl side of the QMS API.
//
// It provides an HTTP implementation of Client that carries the actor's
// bearer token and turns error answers into *APIError, and the bootstrap of
// the local SQLite journal (InitDatabase, RunMigrations) in which signatures
// made offline wait for submission.
//
// Transport failures and 5xx answers match ErrUnavailable with errors.Is, a
// 401 matches ErrUnauthorized. APIError.Permanent tells a sync loop whether a
// failed request is worth retrying.
package client
