package models

import "time"

// Credential is one stored site credential. The (Owner, Site, Account)
// tuple is unique; Secret is an envelope-encrypted token, never plaintext.
type Credential struct {
	ID        string
	Owner     string
	Site      string
	Account   string
	Secret    string
	CreatedAt time.Time
}
