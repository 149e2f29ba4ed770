// Copyright 2026 AgentLink
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"agentlink/link/base"
)

// Key derivation parameters. The salt is fixed so the same master secret
// always derives the same key across process restarts.
const (
	kdfIterations = 390000
	kdfKeyLen     = 32
	kdfSalt       = "agentlink-config-encryption-v1"
)

var (
	// ErrEmptyPlaintext is returned when Encrypt is called with an empty value.
	ErrEmptyPlaintext = errors.New("plaintext must not be empty")

	// ErrDecryptionFailed is returned when a ciphertext is malformed, empty,
	// or was produced under a different master key.
	ErrDecryptionFailed = errors.New("decryption failed")
)

// encryptedConfigFields are the link configuration keys Cipher encrypts.
// connection_string is only encrypted when it appears to embed credentials.
var encryptedConfigFields = []string{"password", "connection_string", "credentials_json"}

// Cipher encrypts and decrypts sensitive configuration values with
// AES-256-GCM under a key derived from a master secret via PBKDF2.
// The derived key is read-only after construction; a Cipher is safe for
// concurrent use. Construct one per process and inject it explicitly.
type Cipher struct {
	aead      cipher.AEAD
	ephemeral bool
	logger    *log.Logger
}

// NewCipher derives the encryption key from masterSecret and returns a
// ready Cipher. An empty masterSecret yields an ephemeral key: encrypted
// data will be unreadable after restart, so a warning is logged.
func NewCipher(masterSecret string) (*Cipher, error) {
	logger := log.New(os.Stdout, "[SECRETS] ", log.LstdFlags)

	ephemeral := false
	if masterSecret == "" {
		raw := make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			return nil, fmt.Errorf("failed to generate ephemeral master key: %w", err)
		}
		masterSecret = base64.StdEncoding.EncodeToString(raw)
		ephemeral = true
		logger.Println("Warning: no master key provided - using ephemeral key, encrypted data will not survive a restart")
	}

	key := pbkdf2.Key([]byte(masterSecret), []byte(kdfSalt), kdfIterations, kdfKeyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCM: %w", err)
	}

	return &Cipher{aead: aead, ephemeral: ephemeral, logger: logger}, nil
}

// Ephemeral reports whether the cipher runs on a generated, in-memory key.
func (c *Cipher) Ephemeral() bool {
	return c.ephemeral
}

// Encrypt encrypts a single string value. The nonce is prepended to the
// ciphertext and the whole blob is base64-encoded.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPlaintext
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Malformed input or a key mismatch returns an
// error wrapping ErrDecryptionFailed.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", fmt.Errorf("%w: empty ciphertext", ErrDecryptionFailed)
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: malformed ciphertext: %v", ErrDecryptionFailed, err)
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) <= nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}

	plaintext, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}

// EncryptDatabaseConfig returns a copy of the config with its sensitive
// fields encrypted and the encrypted marker set. Non-sensitive fields
// pass through unchanged. connection_string is only encrypted when it
// appears to embed credentials; structured credentials_json is
// serialized to text before encryption.
func (c *Cipher) EncryptDatabaseConfig(cfg base.Config) (base.Config, error) {
	out := cfg.Clone()

	for _, field := range encryptedConfigFields {
		v, ok := out[field]
		if !ok || v == nil {
			continue
		}

		var plaintext string
		switch field {
		case "connection_string":
			s, isStr := v.(string)
			if !isStr || !connectionStringHasCredentials(s) {
				continue
			}
			plaintext = s
		case "credentials_json":
			if s, isStr := v.(string); isStr {
				plaintext = s
			} else {
				serialized, err := json.Marshal(v)
				if err != nil {
					return nil, fmt.Errorf("failed to serialize credentials_json: %w", err)
				}
				plaintext = string(serialized)
			}
		default:
			s, isStr := v.(string)
			if !isStr || s == "" {
				continue
			}
			plaintext = s
		}

		enc, err := c.Encrypt(plaintext)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt %s: %w", field, err)
		}
		out[field] = enc
	}

	out[base.EncryptedMarker] = true
	return out, nil
}

// DecryptDatabaseConfig is the inverse of EncryptDatabaseConfig. Configs
// without the encrypted marker predate encryption at rest and are
// returned unchanged. A field that fails to decrypt is left as-is so
// mixed legacy/plaintext data keeps working.
func (c *Cipher) DecryptDatabaseConfig(cfg base.Config) base.Config {
	if enc, ok := cfg[base.EncryptedMarker].(bool); !ok || !enc {
		return cfg
	}

	out := cfg.Clone()
	delete(out, base.EncryptedMarker)

	for _, field := range encryptedConfigFields {
		s, ok := out[field].(string)
		if !ok || s == "" {
			continue
		}

		plaintext, err := c.Decrypt(s)
		if err != nil {
			// Tolerate plaintext values that slipped into an encrypted
			// config (pre-encryption data).
			c.logger.Printf("Leaving field %q as-is: %v", field, err)
			continue
		}

		if field == "credentials_json" {
			var structured map[string]interface{}
			if json.Unmarshal([]byte(plaintext), &structured) == nil {
				out[field] = structured
				continue
			}
		}
		out[field] = plaintext
	}

	return out
}

// connectionStringHasCredentials reports whether a connection string
// appears to embed credentials and therefore must be encrypted.
func connectionStringHasCredentials(s string) bool {
	return strings.Contains(s, "@") || strings.Contains(s, "://")
}
