// Package domain defines the core cryptographic types shared by the encryption
// engine and the vault: supported algorithms, encrypted payloads, and helpers
// for wiping sensitive material from memory.
package domain

// EncryptedPayload holds the output of an authenticated encryption operation.
//
// The authentication tag is kept separate from the ciphertext so that storage
// can persist them as distinct columns and tamper detection failures can be
// attributed precisely. IV reuse under the same key is a correctness violation;
// the engine generates a fresh random IV for every call.
type EncryptedPayload struct {
	// Ciphertext is the encrypted data without the authentication tag.
	Ciphertext []byte
	// IV is the random 96-bit initialization vector generated for this operation.
	IV []byte
	// AuthTag is the 128-bit authentication tag produced by the AEAD.
	AuthTag []byte
	// Algorithm identifies the AEAD algorithm that produced this payload.
	Algorithm Algorithm
}
