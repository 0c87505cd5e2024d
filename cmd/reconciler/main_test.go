package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ms-pos/internal/config"
)

func TestCheckRepairLocks(t *testing.T) {
	cfg := &config.Config{}

	cfg.Reconcile.AutoRepair, cfg.Redis.Enabled = true, false
	assert.Error(t, checkRepairLocks(cfg))

	cfg.Reconcile.AutoRepair, cfg.Redis.Enabled = true, true
	assert.NoError(t, checkRepairLocks(cfg))

	cfg.Reconcile.AutoRepair, cfg.Redis.Enabled = false, false
	assert.NoError(t, checkRepairLocks(cfg), "report-only sweeps need no shared locks")
}
