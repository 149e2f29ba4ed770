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

// Package registry manages the lifecycle of agents and their database
// links. It covers registration with credential validation, API key
// authentication, connector construction, and zero-downtime credential
// rotation.
//
// Raw API keys and secrets are never retained; only SHA-256 hashes are
// stored. Database configurations are encrypted before they enter the
// registry and stay encrypted in any configured Store backend. All
// network probes run outside the registry lock so reads never block on
// validation I/O.
//
// Credential rotation follows a staged protocol: new credentials are
// validated and held as pending while the active configuration remains
// untouched, then either activated (after a fresh liveness check) or
// rolled back. Connector construction prefers pending credentials when
// a rotation is staging, falling back to the active set if the staged
// credentials stop working.
package registry
