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

// Package tenant isolates agents by tenant. It keeps one agent
// registry per tenant, enforces per-tenant agent quotas through an
// external Manager, and maintains a global API-key index so any worker
// can resolve a key to its tenant and agent. The index stores only key
// digests and comes in two flavors: in-memory for single-process
// deployments and Redis-backed for multi-worker ones.
package tenant
