package domain

// Zero overwrites a byte slice with zeros to clear sensitive data from memory.
//
// This is a best-effort hygiene measure: Go's garbage collector may have copied
// the slice's backing array (stack growth, append reallocation) before the wipe,
// so the guarantee is weaker than in languages with deterministic destruction.
// Callers should still invoke it immediately after the last use of key material
// or plaintext credential bytes.
func Zero(b []byte) {
	if b == nil {
		return
	}
	for i := range b {
		b[i] = 0
	}
}

// ZeroAll zeroes multiple byte slices. Convenient for operations that hold
// several sensitive buffers at once, such as key rotation.
func ZeroAll(bs ...[]byte) {
	for _, b := range bs {
		Zero(b)
	}
}
