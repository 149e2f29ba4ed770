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

package registry

import "errors"

// Registry error taxonomy. Callers distinguish cases with errors.Is;
// configuration validation failures surface as *base.ConfigError instead.
var (
	// ErrAlreadyRegistered is returned when the agent ID is taken.
	ErrAlreadyRegistered = errors.New("agent already registered")

	// ErrMissingCredentials is returned when a database link is requested
	// without admin credentials on file.
	ErrMissingCredentials = errors.New("admin credentials required to link a database")

	// ErrDatabaseLinkFailed is returned when the liveness check fails
	// during registration or update. It wraps the connector error.
	ErrDatabaseLinkFailed = errors.New("database link failed")

	// ErrNotFound is returned for operations addressing a nonexistent agent.
	ErrNotFound = errors.New("agent not found")

	// ErrNoStagedCredentials is returned by activate/rollback when no
	// rotation is staged.
	ErrNoStagedCredentials = errors.New("no staged credentials")

	// ErrTypeMismatch is returned when a rotation attempts to change the
	// database kind.
	ErrTypeMismatch = errors.New("rotation cannot change database type")

	// ErrValidationFailed is returned when the pre-staging connection
	// test of a rotation fails. No state is changed.
	ErrValidationFailed = errors.New("rotation validation failed")

	// ErrActivationFailed is returned when the activation-time connection
	// test fails. The staged config is left intact.
	ErrActivationFailed = errors.New("rotation activation failed")
)
