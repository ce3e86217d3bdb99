package config

import "testing"

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Config{
		HTTP: HTTPConfig{Port: 0},
		Search: SearchConfig{
			Addrs: []string{"localhost:6379"},
		},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingSearchAddrs(t *testing.T) {
	cfg := Config{
		HTTP: HTTPConfig{Port: 8080},
		Search: SearchConfig{
			Addrs: []string{},
		},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing search addrs")
	}
}

func TestValidate_PageSizeOrdering(t *testing.T) {
	cfg := Config{
		HTTP: HTTPConfig{Port: 8080},
		Search: SearchConfig{
			Addrs:           []string{"localhost:6379"},
			DefaultPageSize: 200,
			MaxPageSize:     100,
		},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for default page size above max")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 10 {
		t.Errorf("expected WriteTimeoutSec=10, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Search.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Search.ReadinessTimeout)
	}
	if cfg.Search.AnnIndex != "renoted:ann:idx" {
		t.Errorf("expected AnnIndex='renoted:ann:idx', got %q", cfg.Search.AnnIndex)
	}
	if cfg.Search.SharedPrefix != "renoted:shared:" {
		t.Errorf("expected SharedPrefix='renoted:shared:', got %q", cfg.Search.SharedPrefix)
	}
	if cfg.Search.StackPrefix != "renoted:stack:" {
		t.Errorf("expected StackPrefix='renoted:stack:', got %q", cfg.Search.StackPrefix)
	}
	if cfg.Search.DefaultPageSize != 20 {
		t.Errorf("expected DefaultPageSize=20, got %d", cfg.Search.DefaultPageSize)
	}
	if cfg.Search.MaxPageSize != 100 {
		t.Errorf("expected MaxPageSize=100, got %d", cfg.Search.MaxPageSize)
	}
	if cfg.Store.Path != "renoted.db" {
		t.Errorf("expected Path='renoted.db', got %q", cfg.Store.Path)
	}
	if cfg.Indexer.QueueSize != 1024 {
		t.Errorf("expected QueueSize=1024, got %d", cfg.Indexer.QueueSize)
	}
	if cfg.Indexer.Workers != 2 {
		t.Errorf("expected Workers=2, got %d", cfg.Indexer.Workers)
	}
	if cfg.Indexer.StopTimeoutSec != 5 {
		t.Errorf("expected StopTimeoutSec=5, got %d", cfg.Indexer.StopTimeoutSec)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP: HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Search: SearchConfig{
			ReadinessTimeout: 15,
			AnnIndex:         "custom:idx",
			DefaultPageSize:  50,
			MaxPageSize:      500,
		},
		Store:   StoreConfig{Path: "/var/lib/renoted/store.db"},
		Indexer: IndexerConfig{QueueSize: 64, Workers: 8},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Search.AnnIndex != "custom:idx" {
		t.Errorf("expected AnnIndex='custom:idx', got %q", cfg.Search.AnnIndex)
	}
	if cfg.Search.DefaultPageSize != 50 {
		t.Errorf("expected DefaultPageSize=50, got %d", cfg.Search.DefaultPageSize)
	}
	if cfg.Store.Path != "/var/lib/renoted/store.db" {
		t.Errorf("expected Path='/var/lib/renoted/store.db', got %q", cfg.Store.Path)
	}
	if cfg.Indexer.QueueSize != 64 {
		t.Errorf("expected QueueSize=64, got %d", cfg.Indexer.QueueSize)
	}
	if cfg.Indexer.Workers != 8 {
		t.Errorf("expected Workers=8, got %d", cfg.Indexer.Workers)
	}
}
