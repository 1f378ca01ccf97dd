package proxy

import (
	"fmt"

	"github.com/containerd/errdefs"
)

var (
	// ErrConfiguration marks a proxy that cannot encrypt or decrypt with its
	// current configuration.
	ErrConfiguration = fmt.Errorf("proxy configuration: %w", errdefs.ErrFailedPrecondition)

	ErrNoEncryptionKey   = fmt.Errorf("%w: encryption key is not configured", ErrConfiguration)
	ErrUnsupportedCipher = fmt.Errorf("%w: unsupported cipher", ErrConfiguration)

	// ErrDecryption is returned when ciphertext is malformed or does not
	// decrypt under the configured cipher and key.
	ErrDecryption = fmt.Errorf("decryption failed: %w", errdefs.ErrDataLoss)
)
