package protocol

// Keys of the persistent key-value store. The names are part of the on-disk
// format and must not change between releases.
const (
	KeyPublicKey           = "public_key"
	KeyVoterAddress        = "voter_address"
	KeyEncryptedPrivateKey = "encrypted_private_key"
	KeyEncryptionIV        = "encryption_iv"       // outer layer (encryption alias)
	KeyInnerEncryptionIV   = "inner_encryption_iv" // inner layer (master alias)
	KeyCreationTime        = "key_creation_time"
	KeyGenerationMethod    = "key_generation_method"
	KeyMetadata            = "key_metadata"
)

// Custodian related prefixes
const (
	PrefixCustodianKey = "custodian:key:" // custodian:key:Alias = sealed wrapping key
	PrefixCustodianKDF = "custodian:kdf"  // argon2id salt for sealed wrapping keys
)

// Wrapping key alias suffixes
const (
	AliasMaster     = "master"
	AliasEncryption = "encryption"
)

// RequiredKeys lists every field that must be present for a stored key pair
// to be considered complete.
var RequiredKeys = []string{
	KeyPublicKey,
	KeyVoterAddress,
	KeyEncryptedPrivateKey,
	KeyEncryptionIV,
	KeyInnerEncryptionIV,
	KeyCreationTime,
	KeyGenerationMethod,
}

// AllKeys lists every field owned by the wallet, used by secure wipe.
var AllKeys = append(append([]string{}, RequiredKeys...), KeyMetadata)
