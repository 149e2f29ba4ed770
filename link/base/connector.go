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

import (
	"context"
	"time"
)

// Connector is the opaque database capability handed out to agents.
// A connector is built from a decrypted link configuration and owns its
// own connection lifecycle; callers are responsible for calling Connect
// before use and Disconnect when done.
type Connector interface {
	// Lifecycle Management
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	// ExecuteQuery runs a statement against the linked database.
	// When fetch is true the result rows are returned; otherwise only
	// the affected-row count is populated.
	ExecuteQuery(ctx context.Context, query string, fetch bool) (*QueryResult, error)

	// DatabaseInfo returns server-side metadata (version, database name,
	// object counts) for diagnostics.
	DatabaseInfo(ctx context.Context) (map[string]interface{}, error)

	// Metadata
	Name() string // Link instance name (usually the agent ID)
	Kind() Kind   // Database kind (postgresql, mysql, ...)
}

// LinkConfig is the fully parsed, decrypted configuration a connector is
// built from. Settings holds the raw field map (host, port, user, password,
// connection_string, driver-specific extras); Pooling and Timeouts are the
// validated policy sub-configs.
type LinkConfig struct {
	Name     string
	Kind     Kind
	Settings Config
	Pooling  PoolingPolicy
	Timeouts TimeoutPolicy
}

// QueryResult contains the results of an ExecuteQuery call
type QueryResult struct {
	Rows         []map[string]interface{} `json:"rows,omitempty"`
	RowCount     int                      `json:"row_count"`
	RowsAffected int                      `json:"rows_affected"`
	Duration     time.Duration            `json:"duration"`
	Connector    string                   `json:"connector"`
}

// LinkError represents errors specific to connector operations
type LinkError struct {
	LinkName  string
	Operation string
	Message   string
	Cause     error
}

func (e *LinkError) Error() string {
	if e.Cause != nil {
		return e.LinkName + "." + e.Operation + ": " + e.Message + " (cause: " + e.Cause.Error() + ")"
	}
	return e.LinkName + "." + e.Operation + ": " + e.Message
}

func (e *LinkError) Unwrap() error {
	return e.Cause
}

// NewLinkError creates a new LinkError
func NewLinkError(linkName, operation, message string, cause error) *LinkError {
	return &LinkError{
		LinkName:  linkName,
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}
