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

package base

// secretFields are the configuration keys that must never leave the
// registry in plaintext.
var secretFields = []string{"password", "connection_string", "credentials_json", "api_secret", "private_key"}

const redacted = "***"

// IsSecretField reports whether the configuration key holds credential
// material.
func IsSecretField(key string) bool {
	for _, f := range secretFields {
		if key == f {
			return true
		}
	}
	return false
}

// Sanitize returns a copy of the config with all secret fields masked.
// Safe to log or return to callers.
func Sanitize(cfg Config) Config {
	out := cfg.Clone()
	for _, f := range secretFields {
		if _, ok := out[f]; ok {
			out[f] = redacted
		}
	}
	delete(out, EncryptedMarker)
	return out
}

// Summary is the human-safe description of a linked database stored on
// an agent record: host, port, database name and kind, never credentials.
type Summary struct {
	Type     string `json:"type"`
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Database string `json:"database,omitempty"`
	Status   string `json:"status"`
}

// Summarize builds a credential-free summary for a link configuration.
func Summarize(kind Kind, cfg Config) *Summary {
	s := &Summary{Type: kind.String()}
	s.Host = cfg.String("host")
	if p, ok := cfg.Int("port"); ok {
		s.Port = p
	}
	s.Database = cfg.String("database")
	if s.Database == "" {
		// BigQuery configs carry a dataset/project instead of a database
		s.Database = cfg.String("dataset")
	}
	return s
}

// EncryptedMarker is the field set on configs whose secret fields are
// ciphertext. Configs without it predate encryption at rest and are
// treated as plaintext.
const EncryptedMarker = "_encrypted"
