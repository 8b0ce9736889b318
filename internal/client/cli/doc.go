// Package cli implements the qmsctl command tree.
//
// Offline commands (canon, hash, keygen, sign, token) need neither a server
// nor a journal. Record commands talk to the QMS HTTP API using the session
// stored by "login" and keep signatures in a local SQLite journal until
// "submit" delivers them, so signing works without connectivity.
package cli
