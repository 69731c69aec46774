/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package secret symmetric-encrypts remote-driver credentials before they
// leave the process, per §6.5's ENCRYPTION_KEY variable ("if set,
// remote-driver credentials are symmetric-encrypted before sending").
// Grounded on original_source's environment_provider/lib/encrypt.py, which
// wraps Fernet the same way for the same reason.
package secret

import (
	"fmt"
	"strings"
	"time"

	"github.com/fernet/fernet-go"
)

// Encryptor symmetric-encrypts and decrypts credential values with one or
// more Fernet keys. Multiple keys support key rotation: Encrypt always uses
// the first, Decrypt tries every key in order.
type Encryptor struct {
	keys []*fernet.Key
}

// New builds an Encryptor from ENCRYPTION_KEY's value, a comma-separated
// list of base64 Fernet keys. An empty key is a configuration error: callers
// that don't set ENCRYPTION_KEY should skip constructing an Encryptor
// entirely rather than call New with "".
func New(key string) (*Encryptor, error) {
	if key == "" {
		return nil, fmt.Errorf("secret: ENCRYPTION_KEY is empty")
	}
	keys, err := fernet.DecodeKeys(strings.Split(key, ",")...)
	if err != nil {
		return nil, fmt.Errorf("secret: decoding ENCRYPTION_KEY: %w", err)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("secret: ENCRYPTION_KEY decoded to no keys")
	}
	return &Encryptor{keys: keys}, nil
}

// Encrypt returns value sealed under the first configured key.
func (e *Encryptor) Encrypt(value string) (string, error) {
	tok, err := fernet.EncryptAndSign([]byte(value), e.keys[0])
	if err != nil {
		return "", fmt.Errorf("secret: encrypting value: %w", err)
	}
	return string(tok), nil
}

// Decrypt verifies and opens token against every configured key, rejecting
// tokens older than ttl. A ttl of zero disables the age check.
func (e *Encryptor) Decrypt(token string, ttl time.Duration) (string, error) {
	msg := fernet.VerifyAndDecrypt([]byte(token), ttl, e.keys)
	if msg == nil {
		return "", fmt.Errorf("secret: token is invalid, unsigned, or expired")
	}
	return string(msg), nil
}

// EncryptCredentials encrypts every value of creds under e, leaving the keys
// untouched. A nil Encryptor passes values through unencrypted, matching
// §6.5's "if set" qualifier: credentials only travel encrypted when an
// operator has actually configured ENCRYPTION_KEY.
func EncryptCredentials(e *Encryptor, creds map[string]string) (map[string]string, error) {
	if len(creds) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(creds))
	for k, v := range creds {
		if e == nil {
			out[k] = v
			continue
		}
		enc, err := e.Encrypt(v)
		if err != nil {
			return nil, fmt.Errorf("secret: encrypting credential %q: %w", k, err)
		}
		out[k] = enc
	}
	return out, nil
}
