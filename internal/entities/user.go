package entities

import "time"

// User represents a registered account in our system. Credential material
// (password and mnemonic hashes) is write-only from the API's point of view.
type User struct {
	ID           int64     `db:"id" json:"user_id"`
	Address      string    `db:"address" json:"address"`
	PasswordHash string    `db:"password_hash" json:"-"`
	MnemonicHash string    `db:"mnemonic_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
