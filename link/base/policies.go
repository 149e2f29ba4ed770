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
	"fmt"
	"time"
)

// Pooling defaults applied when the caller omits a field.
const (
	DefaultPoolMinSize     = 1
	DefaultPoolMaxSize     = 10
	DefaultPoolMaxOverflow = 10
	DefaultPoolTimeout     = 30 * time.Second
	DefaultPoolRecycle     = time.Hour
)

// Timeout defaults applied when the caller omits a field.
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultQueryTimeout   = 30 * time.Second
	DefaultReadTimeout    = 30 * time.Second
	DefaultWriteTimeout   = 30 * time.Second
)

// PoolingPolicy holds validated connection-pool settings for a link.
// Pooling itself is a driver concern; the registry only validates and
// forwards these values.
type PoolingPolicy struct {
	Enabled     bool          `json:"enabled"`
	MinSize     int           `json:"min_size"`
	MaxSize     int           `json:"max_size"`
	MaxOverflow int           `json:"max_overflow"`
	PoolTimeout time.Duration `json:"pool_timeout"`
	PoolRecycle time.Duration `json:"pool_recycle"`
	PrePing     bool          `json:"pool_pre_ping"`
}

// TimeoutPolicy holds validated I/O timeouts for a link. Every field is
// at least one second.
type TimeoutPolicy struct {
	ConnectTimeout time.Duration `json:"connect_timeout"`
	QueryTimeout   time.Duration `json:"query_timeout"`
	ReadTimeout    time.Duration `json:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout"`
}

// DefaultPoolingPolicy returns the pooling defaults.
func DefaultPoolingPolicy() PoolingPolicy {
	return PoolingPolicy{
		Enabled:     true,
		MinSize:     DefaultPoolMinSize,
		MaxSize:     DefaultPoolMaxSize,
		MaxOverflow: DefaultPoolMaxOverflow,
		PoolTimeout: DefaultPoolTimeout,
		PoolRecycle: DefaultPoolRecycle,
		PrePing:     true,
	}
}

// DefaultTimeoutPolicy returns the timeout defaults.
func DefaultTimeoutPolicy() TimeoutPolicy {
	return TimeoutPolicy{
		ConnectTimeout: DefaultConnectTimeout,
		QueryTimeout:   DefaultQueryTimeout,
		ReadTimeout:    DefaultReadTimeout,
		WriteTimeout:   DefaultWriteTimeout,
	}
}

// ParsePoolingPolicy parses and validates the "pooling" sub-config.
// Numeric duration fields are given in seconds. A nil map yields the
// defaults. Violations are reported as ConfigError naming the field.
func ParsePoolingPolicy(sub map[string]interface{}) (PoolingPolicy, error) {
	p := DefaultPoolingPolicy()
	if sub == nil {
		return p, nil
	}

	if v, ok := sub["enabled"].(bool); ok {
		p.Enabled = v
	}
	if v, ok := asInt(sub["min_size"]); ok {
		p.MinSize = v
	}
	if v, ok := asInt(sub["max_size"]); ok {
		p.MaxSize = v
	}
	if v, ok := asInt(sub["max_overflow"]); ok {
		p.MaxOverflow = v
	}
	if v, ok := asInt(sub["pool_timeout"]); ok {
		p.PoolTimeout = time.Duration(v) * time.Second
	}
	if v, ok := asInt(sub["pool_recycle"]); ok {
		p.PoolRecycle = time.Duration(v) * time.Second
	}
	if v, ok := sub["pool_pre_ping"].(bool); ok {
		p.PrePing = v
	}

	if err := p.Validate(); err != nil {
		return PoolingPolicy{}, err
	}
	return p, nil
}

// Validate checks the pooling invariants.
func (p PoolingPolicy) Validate() error {
	if p.MinSize < 1 {
		return &ConfigError{Field: "min_size", Reason: fmt.Sprintf("must be >= 1, got %d", p.MinSize)}
	}
	if p.MaxSize < p.MinSize {
		return &ConfigError{Field: "max_size", Reason: fmt.Sprintf("must be >= min_size (%d), got %d", p.MinSize, p.MaxSize)}
	}
	if p.MaxOverflow < 0 {
		return &ConfigError{Field: "max_overflow", Reason: fmt.Sprintf("must be >= 0, got %d", p.MaxOverflow)}
	}
	if p.PoolTimeout < 0 {
		return &ConfigError{Field: "pool_timeout", Reason: "must be >= 0"}
	}
	if p.PoolRecycle < 0 {
		return &ConfigError{Field: "pool_recycle", Reason: "must be >= 0"}
	}
	return nil
}

// ParseTimeoutPolicy parses and validates the "timeouts" sub-config.
// Numeric fields are given in seconds; every timeout must be at least
// one second.
func ParseTimeoutPolicy(sub map[string]interface{}) (TimeoutPolicy, error) {
	t := DefaultTimeoutPolicy()
	if sub == nil {
		return t, nil
	}

	fields := []struct {
		key string
		dst *time.Duration
	}{
		{"connect_timeout", &t.ConnectTimeout},
		{"query_timeout", &t.QueryTimeout},
		{"read_timeout", &t.ReadTimeout},
		{"write_timeout", &t.WriteTimeout},
	}
	for _, f := range fields {
		if v, ok := asInt(sub[f.key]); ok {
			*f.dst = time.Duration(v) * time.Second
		}
	}

	if err := t.Validate(); err != nil {
		return TimeoutPolicy{}, err
	}
	return t, nil
}

// Validate checks that every timeout is at least one second.
func (t TimeoutPolicy) Validate() error {
	fields := []struct {
		key string
		val time.Duration
	}{
		{"connect_timeout", t.ConnectTimeout},
		{"query_timeout", t.QueryTimeout},
		{"read_timeout", t.ReadTimeout},
		{"write_timeout", t.WriteTimeout},
	}
	for _, f := range fields {
		if f.val < time.Second {
			return &ConfigError{Field: f.key, Reason: fmt.Sprintf("must be >= 1 second, got %v", f.val)}
		}
	}
	return nil
}
