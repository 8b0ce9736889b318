package models

import "time"

// Actor is a person who can transition records and e-sign.
type Actor struct {
	ID          string
	UserName    string
	DisplayName string
	Scheme      string
	Salt        []byte
	Verifier    []byte
	CreatedAt   time.Time
}
