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

import "strings"

// Kind identifies a supported database kind. The set is closed: adding a
// kind is a compile-time decision, and unknown kinds are rejected with a
// ConfigError instead of falling through to a default.
type Kind string

const (
	KindPostgres  Kind = "postgresql"
	KindMySQL     Kind = "mysql"
	KindMongoDB   Kind = "mongodb"
	KindBigQuery  Kind = "bigquery"
	KindSnowflake Kind = "snowflake"
	KindCassandra Kind = "cassandra"
)

// Kinds returns all supported database kinds.
func Kinds() []Kind {
	return []Kind{KindPostgres, KindMySQL, KindMongoDB, KindBigQuery, KindSnowflake, KindCassandra}
}

// ParseKind resolves a caller-supplied type string to a Kind.
// Common aliases (postgres, mongo) are accepted.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgresql", "postgres":
		return KindPostgres, nil
	case "mysql":
		return KindMySQL, nil
	case "mongodb", "mongo":
		return KindMongoDB, nil
	case "bigquery":
		return KindBigQuery, nil
	case "snowflake":
		return KindSnowflake, nil
	case "cassandra":
		return KindCassandra, nil
	case "":
		return "", &ConfigError{Field: "type", Reason: "database type is required"}
	default:
		return "", &ConfigError{Field: "type", Reason: "unsupported database type: " + s}
	}
}

// String returns the canonical name of the kind.
func (k Kind) String() string {
	return string(k)
}

// TestQuery returns the trivial liveness query for the kind, or "" for
// kinds that have no SQL-like probe (MongoDB uses its ping command via
// DatabaseInfo instead).
func (k Kind) TestQuery() string {
	switch k {
	case KindPostgres, KindMySQL, KindSnowflake, KindBigQuery:
		return "SELECT 1"
	case KindCassandra:
		return "SELECT release_version FROM system.local"
	default:
		return ""
	}
}
