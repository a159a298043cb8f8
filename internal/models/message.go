package models

// EncryptedMessage is an opaque, relay-stored unit of ciphertext. The relay
// performs no decryption: ciphertext, iv and auth tag are hex strings it
// stores and forwards untouched. The recipient is derived from the session,
// never taken from the client.
type EncryptedMessage struct {
	ID         string `json:"id"` // ULID
	SessionID  string `json:"session_id"`
	FromID     string `json:"from"`
	ToID       string `json:"to"`
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	AuthTag    string `json:"auth_tag"`
	Timestamp  int64  `json:"ts"` // Unix ms
}
