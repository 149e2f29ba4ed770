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

import "fmt"

// Config is a database link configuration map as supplied by callers:
// host, port, user, password, database, connection_string, pooling,
// timeouts, plus driver-specific extras which pass through untouched.
type Config map[string]interface{}

// ConfigError reports a validation failure for a single configuration
// field. Validation runs before any network I/O is attempted.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// Clone returns a shallow copy of the config. Nested sub-configs
// (pooling, timeouts) are copied one level deep so callers can mutate
// the clone without touching the original.
func (c Config) Clone() Config {
	if c == nil {
		return nil
	}
	out := make(Config, len(c))
	for k, v := range c {
		if sub, ok := v.(map[string]interface{}); ok {
			subCopy := make(map[string]interface{}, len(sub))
			for sk, sv := range sub {
				subCopy[sk] = sv
			}
			out[k] = subCopy
			continue
		}
		out[k] = v
	}
	return out
}

// String returns the string value for key, or "" if absent or not a string.
func (c Config) String(key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

// Int returns the integer value for key, tolerating the numeric types
// JSON and YAML decoders produce. ok is false if the key is absent or
// not numeric.
func (c Config) Int(key string) (int, bool) {
	return asInt(c[key])
}

// Sub returns the nested map for key (e.g., "pooling", "timeouts").
func (c Config) Sub(key string) map[string]interface{} {
	switch v := c[key].(type) {
	case map[string]interface{}:
		return v
	case Config:
		return v
	default:
		return nil
	}
}

// Has reports whether key is present with a non-empty value.
func (c Config) Has(key string) bool {
	v, ok := c[key]
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr {
		return s != ""
	}
	return true
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	default:
		return 0, false
	}
}
