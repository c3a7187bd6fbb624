package main

import (
	"testing"
	"time"

	"github.com/aluiziolira/autotrader-watch/config"
	"github.com/aluiziolira/autotrader-watch/messenger"
	"github.com/aluiziolira/autotrader-watch/models"
	"github.com/aluiziolira/autotrader-watch/store"
)

func TestApplyFlags(t *testing.T) {
	cfg := config.DefaultConfig()
	applyFlags(cfg, "memory", "redis", 500, true, true, 3*time.Second, "out/listings.csv", "DUAL", "@hourly", ":9090", true)

	if cfg.StoreBackend != "memory" || cfg.LedgerBackend != "redis" {
		t.Errorf("backends = %s/%s", cfg.StoreBackend, cfg.LedgerBackend)
	}
	if cfg.PageLimit != 500 || !cfg.CommitPartial || cfg.ResetCandidates {
		t.Errorf("harvest/filter flags not applied: %+v", cfg)
	}
	if cfg.DispatchDelay != 3*time.Second {
		t.Errorf("dispatch delay = %s", cfg.DispatchDelay)
	}
	if cfg.ExportFile != "out/listings.csv" || cfg.ExportFormat != "dual" {
		t.Errorf("export = %s (%s)", cfg.ExportFile, cfg.ExportFormat)
	}
}

func TestApplyFlagsKeepsDefaults(t *testing.T) {
	cfg := config.DefaultConfig()
	want := *cfg
	applyFlags(cfg, "", "", 0, false, false, 0, "", "csv", "", "", false)

	if cfg.StoreBackend != want.StoreBackend || cfg.PageLimit != want.PageLimit || cfg.DispatchDelay != want.DispatchDelay {
		t.Errorf("zero flags changed defaults")
	}
	if cfg.ExportFormat != "" {
		t.Errorf("export should stay disabled, got %q", cfg.ExportFormat)
	}
	if !cfg.ResetCandidates {
		t.Error("candidates should be reset by default")
	}
}

func TestNewTransportWithoutToken(t *testing.T) {
	tr, err := newTransport(config.DefaultConfig())
	if err != nil {
		t.Fatalf("newTransport() error = %v", err)
	}
	if _, ok := tr.(messenger.Log); !ok {
		t.Errorf("transport = %T, want messenger.Log", tr)
	}
}

func TestBuildRunner(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.StoreBackend = "memory"
	cfg.Criteria = []models.Criterion{{MaxPrice: 1, TitleContains: "civic"}}

	runner, writer, err := buildRunner(cfg, store.NewMemory(), messenger.Log{}, nil, nil)
	if err != nil {
		t.Fatalf("buildRunner() error = %v", err)
	}
	if writer != nil {
		t.Error("no export writer expected")
	}
	if runner.Harvester == nil || runner.Filter == nil || runner.Enricher == nil || runner.Notifier == nil {
		t.Errorf("runner has unwired stages: %+v", runner)
	}
	if len(runner.Criteria) != 1 {
		t.Errorf("criteria = %d, want 1", len(runner.Criteria))
	}
}
