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

/*
Package base defines the contracts shared by all AgentLink database
connectors.

# Overview

Every database kind (PostgreSQL, MySQL, MongoDB, BigQuery, Snowflake,
Cassandra) implements the Connector interface: a narrow, opaque
capability with Connect/Disconnect lifecycle, ExecuteQuery, and
DatabaseInfo for diagnostics. The package also holds the configuration
value objects the registry validates before any connector is built:

  - Config: the raw link configuration map supplied by callers
  - PoolingPolicy / TimeoutPolicy: validated pool and timeout settings
  - Kind: the closed enumeration of supported database kinds

Validation failures are reported as *ConfigError naming the offending
field, and are always detected before network I/O is attempted.

# Sanitization

Sanitize and Summarize produce credential-free views of a link
configuration that are safe to log or return to callers. The
EncryptedMarker constant distinguishes configs whose secret fields are
ciphertext from legacy plaintext configs.
*/
package base
