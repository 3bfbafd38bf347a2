package errs

// Error codes for the messaging core. Grouped by concern: 11xx auth,
// 12xx directory, 13xx crypto, 14xx storage.
const (
	AuthenticationFailureCode = 1101
	UserNotFoundCode          = 1201
	EncryptionFailureCode     = 1301
	DecryptionFailureCode     = 1302
	StoreFailureCode          = 1401
)

var (
	// ErrAuthentication covers bad/expired/malformed identity tokens. The
	// connection stays open so the client can retry with a fresh token.
	ErrAuthentication = NewCodeError(AuthenticationFailureCode, "authentication failed")

	// ErrUserNotFound: no record matched any directory resolution strategy.
	ErrUserNotFound = NewCodeError(UserNotFoundCode, "user not found")

	// ErrEncryption / ErrDecryption are sentinels: crypto failures are logged
	// and degraded, never propagated as ciphertext to the client.
	ErrEncryption = NewCodeError(EncryptionFailureCode, "message encryption failed")
	ErrDecryption = NewCodeError(DecryptionFailureCode, "message decryption failed")

	// ErrStore: generic persistence failure; caller aborts, no partial state.
	ErrStore = NewCodeError(StoreFailureCode, "storage operation failed")
)
