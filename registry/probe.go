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

import (
	"context"
	"time"

	"agentlink/link/base"
	"agentlink/link/factory"
)

// Connection quality ratings produced by TestConnection.
const (
	QualityExcellent = "excellent" // connect, query, and info all pass
	QualityGood      = "good"      // connect and query pass, info fails
	QualityFair      = "fair"      // connect only
	QualityPoor      = "poor"      // connect fails
)

// CheckResult is the outcome of one step of a connection test.
type CheckResult struct {
	OK      bool          `json:"ok"`
	Skipped bool          `json:"skipped,omitempty"`
	Error   string        `json:"error,omitempty"`
	Latency time.Duration `json:"latency"`
}

// ConnectionReport is the result of a stateless connection test: one
// CheckResult per step plus a qualitative rating.
type ConnectionReport struct {
	Kind       base.Kind              `json:"kind"`
	Connect    CheckResult            `json:"connect"`
	Query      CheckResult            `json:"query"`
	Info       CheckResult            `json:"info"`
	Quality    string                 `json:"connection_quality"`
	CheckedAt  time.Time              `json:"checked_at"`
	ServerInfo map[string]interface{} `json:"server_info,omitempty"`
}

// Connected reports whether the connect step succeeded.
func (r *ConnectionReport) Connected() bool {
	return r.Connect.OK
}

// FailureReason returns the first failing step's error, or "" if all
// steps passed.
func (r *ConnectionReport) FailureReason() string {
	for _, c := range []CheckResult{r.Connect, r.Query, r.Info} {
		if !c.OK && !c.Skipped && c.Error != "" {
			return c.Error
		}
	}
	return ""
}

// TestConnection runs a stateless diagnostic against a database config:
// field and policy validation first (configuration errors short-circuit
// with no connection attempt), then connect, a trivial query for kinds
// that have one, and a server-info retrieval. The connection is always
// closed regardless of which step failed. Registry state is not touched.
func (r *Registry) TestConnection(ctx context.Context, dbConfig base.Config) (*ConnectionReport, error) {
	linkCfg, err := factory.Prepare("connection-test", dbConfig)
	if err != nil {
		return nil, err
	}

	conn, err := r.builder(linkCfg)
	if err != nil {
		return nil, err
	}

	report := &ConnectionReport{
		Kind:      linkCfg.Kind,
		CheckedAt: time.Now().UTC(),
	}

	testCtx, cancel := context.WithTimeout(ctx, linkCfg.Timeouts.ConnectTimeout+linkCfg.Timeouts.QueryTimeout)
	defer cancel()

	start := time.Now()
	if err := conn.Connect(testCtx); err != nil {
		report.Connect = CheckResult{Error: err.Error(), Latency: time.Since(start)}
		report.Quality = QualityPoor
		return report, nil
	}
	report.Connect = CheckResult{OK: true, Latency: time.Since(start)}
	defer func() {
		if err := conn.Disconnect(context.Background()); err != nil {
			r.logger.Printf("Warning: connection test disconnect failed: %v", err)
		}
	}()

	if q := linkCfg.Kind.TestQuery(); q != "" {
		start = time.Now()
		if _, err := conn.ExecuteQuery(testCtx, q, true); err != nil {
			report.Query = CheckResult{Error: err.Error(), Latency: time.Since(start)}
		} else {
			report.Query = CheckResult{OK: true, Latency: time.Since(start)}
		}
	} else {
		report.Query = CheckResult{OK: true, Skipped: true}
	}

	start = time.Now()
	info, err := conn.DatabaseInfo(testCtx)
	if err != nil {
		report.Info = CheckResult{Error: err.Error(), Latency: time.Since(start)}
	} else {
		report.Info = CheckResult{OK: true, Latency: time.Since(start)}
		report.ServerInfo = info
	}

	switch {
	case report.Query.OK && report.Info.OK:
		report.Quality = QualityExcellent
	case report.Query.OK:
		report.Quality = QualityGood
	default:
		report.Quality = QualityFair
	}
	return report, nil
}
