package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smile-sa/odoo-deploy/pkg/history"
)

type fakeStore struct {
	host     string
	limit    int
	attempts []*history.Attempt
}

func (s *fakeStore) WriteAttempt(ctx context.Context, attempt history.Attempt) error { return nil }
func (s *fakeStore) SetState(ctx context.Context, id, state string) error            { return nil }
func (s *fakeStore) SetBackup(ctx context.Context, id, backup string) error          { return nil }

func (s *fakeStore) Attempts(ctx context.Context, host string, limit int) ([]*history.Attempt, error) {
	s.host = host
	s.limit = limit
	return s.attempts, nil
}

func TestListAttempts(t *testing.T) {
	store := &fakeStore{
		attempts: []*history.Attempt{
			{
				ID:       "a1",
				Workflow: "customer_testing",
				Host:     "testing.example.com",
				Ref:      "v3.0",
				Database: "demo",
				Backup:   "demo_20230101_000000.dump",
				State:    history.StateSuccess,
				Created:  time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			},
			{
				ID:       "a2",
				Workflow: "internal_testing",
				Host:     "testing.example.com",
				Ref:      "1.2",
				Database: "demo",
				State:    history.StateRolledBack,
				Created:  time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, listAttempts(context.Background(), store, "testing.example.com", &buf))

	assert.Equal(t, "testing.example.com", store.host)
	assert.Equal(t, historyLimit, store.limit)

	out := buf.String()
	assert.Contains(t, out, "customer_testing")
	assert.Contains(t, out, "v3.0 -> demo")
	assert.Contains(t, out, "backup=demo_20230101_000000.dump")
	assert.Contains(t, out, "rolled_back")
}
