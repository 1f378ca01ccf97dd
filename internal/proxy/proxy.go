// Package proxy implements the database proxy collaborator: reversible
// obfuscation of serialized records and post-save/post-fetch notifications
// forwarded to the collection that owns the proxy.
//
// The cipher is keyed directly from a passphrase with a fixed IV and no
// integrity check. It keeps data on disk unreadable to a casual reader; it is
// not meant to protect it from an attacker.
package proxy

import (
	"encoding/hex"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/bassista/go_dbproxy/internal/events"
	"github.com/bassista/go_dbproxy/internal/logger"
)

// Event names emitted by the lifecycle hooks.
const (
	EventSave  = "save"
	EventFetch = "fetch"
)

// Owner is the collection a proxy forwards notifications to.
type Owner interface {
	Emit(event string, payload any)
}

// Options configures a DatabaseProxy. The zero value disables obfuscation
// and selects DefaultCipher.
type Options struct {
	EncryptionKey string `mapstructure:"encryption_key"`
	Cipher        string `mapstructure:"cipher"`
}

// DatabaseProxy is the base every backend proxy delegates to. It is itself
// an emitter: subscribe with On/Once to observe its own notifications.
type DatabaseProxy struct {
	events.Emitter

	munge []byte
	alg   algorithm

	mu    sync.RWMutex
	owner Owner
}

// New validates opts and returns a proxy. An unsupported cipher name fails
// with ErrUnsupportedCipher.
func New(opts Options) (*DatabaseProxy, error) {
	alg, err := lookupAlgorithm(opts.Cipher)
	if err != nil {
		return nil, err
	}
	p := &DatabaseProxy{alg: alg}
	if opts.EncryptionKey != "" {
		p.munge = []byte(opts.EncryptionKey)
	}
	return p, nil
}

// Fork returns a new unattached proxy with the same cipher and key. Listeners
// registered on p are not carried over.
func (p *DatabaseProxy) Fork() *DatabaseProxy {
	return &DatabaseProxy{alg: p.alg, munge: append([]byte(nil), p.munge...)}
}

// Attach records the collection that owns this proxy. Stores and models
// call it when they are handed a proxy.
func (p *DatabaseProxy) Attach(owner Owner) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.owner = owner
}

// Owner returns the attached collection, or nil.
func (p *DatabaseProxy) Owner() Owner {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.owner
}

// Type reports the kind of the owning collection ("store" or "model"), or
// an empty string when the proxy is not attached.
func (p *DatabaseProxy) Type() string {
	k, ok := p.Owner().(interface{ Kind() string })
	if !ok {
		return ""
	}
	return k.Kind()
}

// Cipher returns the normalized cipher name.
func (p *DatabaseProxy) Cipher() string {
	return p.alg.name
}

// Encrypted reports whether an encryption key is configured.
func (p *DatabaseProxy) Encrypted() bool {
	return len(p.munge) > 0
}

// Encrypt obfuscates text with the configured cipher and key and returns it
// hex encoded.
func (p *DatabaseProxy) Encrypt(text string) (string, error) {
	if !p.Encrypted() {
		return "", ErrNoEncryptionKey
	}
	sealed, err := p.alg.seal(p.munge, []byte(text))
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Input that is not hex fails with ErrDecryption.
// For CBC ciphers a wrong key or cipher is detected through the padding and
// also fails with ErrDecryption. CTR ciphers carry no padding: a wrong key
// only fails when the output is not valid UTF-8, otherwise garbage is
// returned without an error.
func (p *DatabaseProxy) Decrypt(text string) (string, error) {
	if !p.Encrypted() {
		return "", ErrNoEncryptionKey
	}
	sealed, err := hex.DecodeString(text)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	plain, err := p.alg.open(p.munge, sealed)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(plain) {
		return "", fmt.Errorf("%w: result is not valid UTF-8", ErrDecryption)
	}
	return string(plain), nil
}

// NotifyAfterSave emits "save" on the proxy, then on its owner, then calls
// callback when it is non-nil.
func (p *DatabaseProxy) NotifyAfterSave(callback func()) {
	p.forward(EventSave, nil)
	if callback != nil {
		callback()
	}
}

// NotifyAfterFetch emits "fetch" with content on the proxy, then on its
// owner, then calls callback(content) when callback is non-nil.
func (p *DatabaseProxy) NotifyAfterFetch(content any, callback func(any)) {
	p.forward(EventFetch, content)
	if callback != nil {
		callback(content)
	}
}

func (p *DatabaseProxy) forward(event string, payload any) {
	p.Emit(event, payload)

	owner := p.Owner()
	if owner == nil {
		logger.WithComponent("proxy").Debugf("no owner attached, %q not forwarded", event)
		return
	}
	owner.Emit(event, payload)
}
