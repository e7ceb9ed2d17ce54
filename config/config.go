// Package config loads client policy from the environment, generalizing the
// godotenv+viper pattern found throughout orbas1-Synnergy's cmd/ entry
// points (cmd/explorer/main.go's AutomaticEnv + GetString-with-default, and
// walletserver/config/config.go's plain godotenv.Load) to the full set of
// cluster, connection-pool, command-retry, batch-dispatch and scan knobs
// spec §4 describes.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/aerokit-io/aerokit/batch"
	"github.com/aerokit-io/aerokit/cluster"
	"github.com/aerokit-io/aerokit/internal/command"
	"github.com/aerokit-io/aerokit/internal/info"
	"github.com/aerokit-io/aerokit/internal/netpool"
	"github.com/aerokit-io/aerokit/scan"
)

// Policy is the full set of client-tunable knobs, loaded once at startup and
// converted into the per-package Config/Policy/Request types each executor
// actually consumes.
type Policy struct {
	Seeds       []string
	ClusterName string

	TendInterval       time.Duration
	StabilizeDeadline  time.Duration
	OneShotDialTimeout time.Duration
	FailIfNotConnected bool

	MaxConnsPerNode  int
	ConnPoolsPerNode int
	IdleTimeout      time.Duration
	DialTimeout      time.Duration

	RequireAuth bool
	Username    string
	Password    string

	CommandTotalTimeout time.Duration
	CommandRetrySleep   time.Duration
	MaxRetries          int

	BatchConcurrency string // "sequential", "parallel", or "max:<n>"

	RecordQueueSize int
}

// Load reads a local .env file (if present; its absence is not an error,
// matching orbas1-Synnergy's cmd/explorer tolerance for a missing file) and
// then every AEROKIT_* environment variable, falling back to spec.md's
// stated defaults for anything unset.
func Load(envFile string) (Policy, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			// A missing .env file is routine outside local development;
			// only a malformed one deserves an error.
			if !isNotExist(err) {
				return Policy{}, fmt.Errorf("loading %s: %w", envFile, err)
			}
		}
	}

	v := viper.New()
	v.SetEnvPrefix("aerokit")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("seeds", "127.0.0.1:3000")
	v.SetDefault("cluster_name", "")
	v.SetDefault("tend_interval", time.Second)
	v.SetDefault("stabilize_deadline", 3*time.Second)
	v.SetDefault("dial_timeout", 5*time.Second)
	v.SetDefault("fail_if_not_connected", false)
	v.SetDefault("max_conns_per_node", 8)
	v.SetDefault("conn_pools_per_node", 4)
	v.SetDefault("idle_timeout", time.Minute)
	v.SetDefault("require_auth", false)
	v.SetDefault("username", "")
	v.SetDefault("password", "")
	v.SetDefault("command_total_timeout", time.Duration(0))
	v.SetDefault("command_retry_sleep", time.Duration(0))
	v.SetDefault("max_retries", 2)
	v.SetDefault("batch_concurrency", "sequential")
	v.SetDefault("record_queue_size", 256)

	p := Policy{
		Seeds:               splitSeeds(v.GetString("seeds")),
		ClusterName:         v.GetString("cluster_name"),
		TendInterval:        v.GetDuration("tend_interval"),
		StabilizeDeadline:   v.GetDuration("stabilize_deadline"),
		OneShotDialTimeout:  v.GetDuration("dial_timeout"),
		FailIfNotConnected:  v.GetBool("fail_if_not_connected"),
		MaxConnsPerNode:     v.GetInt("max_conns_per_node"),
		ConnPoolsPerNode:    v.GetInt("conn_pools_per_node"),
		IdleTimeout:         v.GetDuration("idle_timeout"),
		DialTimeout:         v.GetDuration("dial_timeout"),
		RequireAuth:         v.GetBool("require_auth"),
		Username:            v.GetString("username"),
		Password:            v.GetString("password"),
		CommandTotalTimeout: v.GetDuration("command_total_timeout"),
		CommandRetrySleep:   v.GetDuration("command_retry_sleep"),
		MaxRetries:          v.GetInt("max_retries"),
		BatchConcurrency:    v.GetString("batch_concurrency"),
		RecordQueueSize:     v.GetInt("record_queue_size"),
	}
	return p, nil
}

func splitSeeds(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isNotExist(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory") ||
		strings.Contains(err.Error(), "cannot find the file") ||
		strings.Contains(err.Error(), "The system cannot find the file")
}

// ClusterConfig builds a cluster.Config from the loaded policy, parsing each
// seed as "host:port" and wiring an info.LoginAuthenticator when RequireAuth
// is set; without it no authenticator is wired, even if credentials are
// configured.
func (p Policy) ClusterConfig() (cluster.Config, error) {
	seeds := make([]cluster.Host, 0, len(p.Seeds))
	for _, s := range p.Seeds {
		host, err := parseHostPort(s)
		if err != nil {
			return cluster.Config{}, err
		}
		seeds = append(seeds, host)
	}

	var auth netpool.Authenticator
	if p.RequireAuth {
		hash, err := netpool.HashCredential(p.Password)
		if err != nil {
			return cluster.Config{}, fmt.Errorf("hashing credential: %w", err)
		}
		auth = info.LoginAuthenticator{Username: p.Username, CredentialHash: hash}
	}

	return cluster.Config{
		Seeds:              seeds,
		ClusterName:        p.ClusterName,
		TendInterval:       p.TendInterval,
		StabilizeDeadline:  p.StabilizeDeadline,
		FailIfNotConnected: p.FailIfNotConnected,
		OneShotDialTimeout: p.OneShotDialTimeout,
		Authenticator:      auth,
		Pool: netpool.Config{
			MaxConnsPerNode:  p.MaxConnsPerNode,
			ConnPoolsPerNode: p.ConnPoolsPerNode,
			IdleTimeout:      p.IdleTimeout,
			DialTimeout:      p.DialTimeout,
			RequireAuth:      p.RequireAuth,
		},
	}, nil
}

// CommandPolicy builds the single-key command executor's retry policy.
func (p Policy) CommandPolicy() command.Policy {
	return command.Policy{
		TotalTimeout:        p.CommandTotalTimeout,
		SleepBetweenRetries: p.CommandRetrySleep,
		MaxRetries:          p.MaxRetries,
	}
}

// BatchPolicy parses BatchConcurrency ("sequential", "parallel", or
// "max:<n>") into a batch.Policy.
func (p Policy) BatchPolicy() (batch.Policy, error) {
	spec := strings.ToLower(strings.TrimSpace(p.BatchConcurrency))
	switch {
	case spec == "" || spec == "sequential":
		return batch.Policy{Concurrency: batch.Sequential()}, nil
	case spec == "parallel":
		return batch.Policy{Concurrency: batch.Parallel()}, nil
	case strings.HasPrefix(spec, "max:"):
		n, err := parsePositiveInt(strings.TrimPrefix(spec, "max:"))
		if err != nil {
			return batch.Policy{}, fmt.Errorf("parsing batch_concurrency %q: %w", p.BatchConcurrency, err)
		}
		return batch.Policy{Concurrency: batch.MaxThreads(n)}, nil
	default:
		return batch.Policy{}, fmt.Errorf("unrecognized batch_concurrency %q", p.BatchConcurrency)
	}
}

// ScanDefaults returns the record queue size a scan.Request should use
// unless the caller overrides it.
func (p Policy) ScanDefaults() scan.Request {
	return scan.Request{RecordQueueSize: p.RecordQueueSize}
}

func parseHostPort(s string) (cluster.Host, error) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return cluster.Host{}, fmt.Errorf("seed %q missing port", s)
	}
	port, err := parsePositiveInt(s[idx+1:])
	if err != nil {
		return cluster.Host{}, fmt.Errorf("parsing seed %q: %w", s, err)
	}
	return cluster.Host{Name: s[:idx], Port: port}, nil
}

func parsePositiveInt(s string) (int, error) {
	n := 0
	if s == "" {
		return 0, fmt.Errorf("empty integer")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("not a number: %q", s)
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}
