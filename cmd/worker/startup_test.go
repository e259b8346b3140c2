package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/F3nrir-00/gaming-library-tracker/internal/config"
)

func TestRunChecks_StopsAtFirstFailure(t *testing.T) {
	var ran []string
	check := func(name string, err error) startupCheck {
		return startupCheck{name: name, fn: func(context.Context) error {
			ran = append(ran, name)
			return err
		}}
	}

	boom := errors.New("connection refused")
	err := runChecks([]startupCheck{
		check("redis", nil),
		check("database", boom),
		check("never", nil),
	})

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "database failed")
	assert.Equal(t, []string{"redis", "database"}, ran)
}

func TestQueuePriorities(t *testing.T) {
	cfg := &config.Config{Sync: config.SyncConfig{QueueName: "steam-sync"}}

	queues := queuePriorities(cfg)
	assert.Equal(t, 6, queues["steam-sync"])
	assert.Equal(t, 1, queues["default"])
}
