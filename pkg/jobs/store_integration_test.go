//go:build integration

package jobs_test

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sim-judge/sim/pkg/jobs"
)

// startMySQL spins up a real mysql:8 container via the generic
// testcontainers API, grounded on the teacher's postgres
// testutils.go:setupTestContainer, adapted since the example pack carries
// no dedicated MySQL testcontainers module.
func startMySQL(t *testing.T) *jobs.Store {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mysql:8",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "root",
			"MYSQL_DATABASE":      "sim_test",
		},
		WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").WithStartupTimeout(90 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306")
	require.NoError(t, err)

	dsn := fmt.Sprintf("root:root@tcp(%s:%s)/sim_test?parseTime=true&multiStatements=true", host, port.Port())

	store, err := jobs.NewStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, thisFile, _, _ := runtime.Caller(0)
	migrationsDir := filepath.Join(filepath.Dir(thisFile), "..", "..", "migrations")
	require.NoError(t, jobs.MigrateToLatest(store.DB(), migrationsDir))

	return store
}

func TestStore_InsertAndFetchPendingBatch(t *testing.T) {
	store := startMySQL(t)
	ctx := context.Background()

	tx, err := store.DB().BeginTx(ctx, nil)
	require.NoError(t, err)

	aux := int64(42)
	id, err := jobs.Insert(ctx, tx, jobs.Job{
		Type:      jobs.JudgeSubmission,
		Priority:  10,
		CreatedAt: time.Now().UTC(),
		AuxID:     &aux,
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	pending, err := jobs.FetchPendingBatch(ctx, store.DB(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, id, pending[0].ID)
	require.Equal(t, jobs.JudgeSubmission, pending[0].Type)
}

func TestStore_CrashRecoveryResetsInProgress(t *testing.T) {
	store := startMySQL(t)
	ctx := context.Background()

	tx, err := store.DB().BeginTx(ctx, nil)
	require.NoError(t, err)
	id, err := jobs.Insert(ctx, tx, jobs.Job{Type: jobs.DeleteProblem, CreatedAt: time.Now().UTC()})
	require.NoError(t, err)
	require.NoError(t, jobs.ClaimInProgress(ctx, tx, id))
	require.NoError(t, tx.Commit())

	n, err := jobs.ResetCrashedJobs(ctx, store.DB())
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	got, err := jobs.Get(ctx, store.DB(), id)
	require.NoError(t, err)
	require.Equal(t, jobs.Pending, got.Status)
}
