package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	p, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(p.Seeds) != 1 || p.Seeds[0] != "127.0.0.1:3000" {
		t.Fatalf("Seeds = %v", p.Seeds)
	}
	if p.TendInterval != time.Second {
		t.Fatalf("TendInterval = %v", p.TendInterval)
	}
	if p.MaxRetries != 2 {
		t.Fatalf("MaxRetries = %d", p.MaxRetries)
	}
	if p.RecordQueueSize != 256 {
		t.Fatalf("RecordQueueSize = %d", p.RecordQueueSize)
	}
}

func TestLoadReadsEnvironmentOverrides(t *testing.T) {
	t.Setenv("AEROKIT_SEEDS", "10.0.0.1:3000,10.0.0.2:3000")
	t.Setenv("AEROKIT_MAX_RETRIES", "5")
	t.Setenv("AEROKIT_BATCH_CONCURRENCY", "max:4")

	p, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(p.Seeds) != 2 || p.Seeds[1] != "10.0.0.2:3000" {
		t.Fatalf("Seeds = %v", p.Seeds)
	}
	if p.MaxRetries != 5 {
		t.Fatalf("MaxRetries = %d", p.MaxRetries)
	}

	bp, err := p.BatchPolicy()
	if err != nil {
		t.Fatalf("BatchPolicy: %v", err)
	}
	if bp.Concurrency == nil {
		t.Fatal("expected a non-nil concurrency strategy")
	}
}

func TestClusterConfigParsesSeeds(t *testing.T) {
	p := Policy{Seeds: []string{"10.0.0.1:3000", "10.0.0.2:3100"}}
	cfg, err := p.ClusterConfig()
	if err != nil {
		t.Fatalf("ClusterConfig: %v", err)
	}
	if len(cfg.Seeds) != 2 || cfg.Seeds[0].Name != "10.0.0.1" || cfg.Seeds[0].Port != 3000 {
		t.Fatalf("Seeds = %+v", cfg.Seeds)
	}
	if cfg.Authenticator != nil {
		t.Fatal("expected no authenticator when RequireAuth is false")
	}
}

func TestClusterConfigWiresAuthenticatorWhenRequired(t *testing.T) {
	p := Policy{Seeds: []string{"10.0.0.1:3000"}, RequireAuth: true, Username: "bob", Password: "secret"}
	cfg, err := p.ClusterConfig()
	if err != nil {
		t.Fatalf("ClusterConfig: %v", err)
	}
	if cfg.Authenticator == nil {
		t.Fatal("expected an authenticator when RequireAuth is true")
	}
}

func TestClusterConfigRejectsSeedWithoutPort(t *testing.T) {
	p := Policy{Seeds: []string{"10.0.0.1"}}
	if _, err := p.ClusterConfig(); err == nil {
		t.Fatal("expected an error for a seed missing a port")
	}
}

func TestBatchPolicyRejectsUnrecognizedConcurrency(t *testing.T) {
	p := Policy{BatchConcurrency: "bogus"}
	if _, err := p.BatchPolicy(); err == nil {
		t.Fatal("expected an error for an unrecognized batch_concurrency value")
	}
}
