package protocol

type Address [20]byte
type Hash [32]byte
type Signature [65]byte // R || S || V, V is the recovery id (0 or 1)

// PublicKey is the uncompressed secp256k1 point without the 0x04 marker (X || Y)
type PublicKey [64]byte
