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
Package secrets encrypts sensitive link configuration fields at rest.

A Cipher derives an AES-256-GCM key from a master secret via PBKDF2 with
a fixed salt, so the same master secret always yields the same key across
restarts. Construct one Cipher per process and pass it into the registry;
there is no global state.

The master secret can come from AGENTLINK_MASTER_KEY, from an AWS Secrets
Manager secret (AGENTLINK_MASTER_KEY_ARN), or be generated ephemerally
for development, in which case encrypted data does not survive a restart.

EncryptDatabaseConfig/DecryptDatabaseConfig operate on whole link
configurations: password, credentials_json, and credential-bearing
connection strings are encrypted; everything else passes through. Configs
written before encryption was introduced carry no marker and are treated
as plaintext.
*/
package secrets
