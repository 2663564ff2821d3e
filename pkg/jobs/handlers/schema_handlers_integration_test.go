//go:build integration

package handlers_test

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sim-judge/sim/pkg/config"
	"github.com/sim-judge/sim/pkg/internalfiles"
	"github.com/sim-judge/sim/pkg/jobs"
	"github.com/sim-judge/sim/pkg/jobs/handlers"
	"github.com/sim-judge/sim/pkg/simlog"
)

// startMySQL mirrors pkg/jobs's own store_integration_test.go helper: a real
// mysql:8 container migrated to the latest schema, since handlers exercise
// raw SQL this repo's schema owns (contest/user columns, cascading deletes)
// that no fake or in-memory driver reproduces faithfully.
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
	migrationsDir := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "migrations")
	require.NoError(t, jobs.MigrateToLatest(store.DB(), migrationsDir))

	return store
}

func newEnv(t *testing.T) *handlers.Env {
	t.Helper()
	ifStore, err := internalfiles.New(t.TempDir())
	require.NoError(t, err)
	return &handlers.Env{
		Config: config.RuntimeConfig{
			ProotPath: t.TempDir(),
		},
		InternalFiles: ifStore,
		Logger:        simlog.New(simlog.DefaultConfig()),
	}
}

const minimalSimfile = `name = Test Problem
label = test-problem
statement = statement.pdf
checker = checker.cpp
solutions = model.cpp
memory_limit = 256
test 1a time_limit=1.00 points=0
test 2a time_limit=1.00 points=10
`

// seedProblem inserts an internal_files row for the package blob plus a
// problems row referencing it, and returns the new problem id.
func seedProblem(t *testing.T, store *jobs.Store) int64 {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	res, err := store.DB().ExecContext(ctx, `INSERT INTO internal_files (created_at) VALUES (?)`, now)
	require.NoError(t, err)
	fileID, err := res.LastInsertId()
	require.NoError(t, err)

	res, err = store.DB().ExecContext(ctx, `
		INSERT INTO problems (file_id, simfile, name, label, visibility, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, NULL, ?, ?)`,
		fileID, minimalSimfile, "Test Problem", "test-problem", 2, now, now)
	require.NoError(t, err)
	problemID, err := res.LastInsertId()
	require.NoError(t, err)
	return problemID
}

func seedSubmission(t *testing.T, store *jobs.Store, problemID int64, userID, contestID, contestRoundID, contestProblemID *int64) int64 {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	res, err := store.DB().ExecContext(ctx, `INSERT INTO internal_files (created_at) VALUES (?)`, now)
	require.NoError(t, err)
	sourceFileID, err := res.LastInsertId()
	require.NoError(t, err)

	res, err = store.DB().ExecContext(ctx, `
		INSERT INTO submissions (problem_id, user_id, contest_problem_id, contest_round_id, contest_id,
		                         source_file_id, language, initial_status, full_status, score,
		                         problem_final, contest_problem_final, contest_problem_initial_final,
		                         initial_report, final_report, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0, 0, NULL, FALSE, FALSE, FALSE, '', '', ?)`,
		problemID, userID, contestProblemID, contestRoundID, contestID, sourceFileID, now)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func dispatch(t *testing.T, store *jobs.Store, env *handlers.Env, job jobs.Job) jobs.Status {
	t.Helper()
	ctx := context.Background()
	tx, err := store.DB().BeginTx(ctx, nil)
	require.NoError(t, err)
	id, err := jobs.Insert(ctx, tx, job)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	job.ID = id

	status, err := handlers.Dispatch(ctx, store.DB(), env, job)
	require.NoError(t, err)
	return status
}

func TestDeleteContest_OrphansOnlyMatchingSubmissions(t *testing.T) {
	store := startMySQL(t)
	env := newEnv(t)
	problemID := seedProblem(t, store)

	contestA, contestB := int64(1), int64(2)
	round, cp := int64(10), int64(100)
	subA := seedSubmission(t, store, problemID, nil, &contestA, &round, &cp)
	subB := seedSubmission(t, store, problemID, nil, &contestB, &round, &cp)

	status := dispatch(t, store, env, jobs.Job{Type: jobs.DeleteContest, CreatedAt: time.Now().UTC(), AuxID: &contestA})
	require.Equal(t, jobs.Done, status)

	gotA, err := fetchSubmissionContestID(store, subA)
	require.NoError(t, err)
	require.Nil(t, gotA)

	gotB, err := fetchSubmissionContestID(store, subB)
	require.NoError(t, err)
	require.NotNil(t, gotB)
	require.Equal(t, contestB, *gotB)
}

func fetchSubmissionContestID(store *jobs.Store, submissionID int64) (*int64, error) {
	var id *int64
	err := store.DB().QueryRow(`SELECT contest_id FROM submissions WHERE id = ?`, submissionID).Scan(&id)
	return id, err
}

func TestDeleteUser_OrphansSubmissionsWithoutDeletingThem(t *testing.T) {
	store := startMySQL(t)
	env := newEnv(t)
	problemID := seedProblem(t, store)

	userID := int64(7)
	subID := seedSubmission(t, store, problemID, &userID, nil, nil, nil)

	status := dispatch(t, store, env, jobs.Job{Type: jobs.DeleteUser, CreatedAt: time.Now().UTC(), AuxID: &userID})
	require.Equal(t, jobs.Done, status)

	var gotUser *int64
	require.NoError(t, store.DB().QueryRow(`SELECT user_id FROM submissions WHERE id = ?`, subID).Scan(&gotUser))
	require.Nil(t, gotUser)
}

func TestMergeUsers_RetargetsDonorSubmissionsToTarget(t *testing.T) {
	store := startMySQL(t)
	env := newEnv(t)
	problemID := seedProblem(t, store)

	donor, target := int64(1), int64(2)
	subID := seedSubmission(t, store, problemID, &donor, nil, nil, nil)

	status := dispatch(t, store, env, jobs.Job{Type: jobs.MergeUsers, CreatedAt: time.Now().UTC(), AuxID: &donor, AuxID2: &target})
	require.Equal(t, jobs.Done, status)

	var gotUser int64
	require.NoError(t, store.DB().QueryRow(`SELECT user_id FROM submissions WHERE id = ?`, subID).Scan(&gotUser))
	require.Equal(t, target, gotUser)
}

func TestReselectFinal_PicksOnlyTheNewestSubmissionPerUser(t *testing.T) {
	store := startMySQL(t)
	env := newEnv(t)
	problemID := seedProblem(t, store)

	user1, user2 := int64(1), int64(2)
	cp := int64(55)
	round := int64(1)
	contest := int64(1)

	old1 := seedSubmission(t, store, problemID, &user1, &contest, &round, &cp)
	new1 := seedSubmission(t, store, problemID, &user1, &contest, &round, &cp)
	only2 := seedSubmission(t, store, problemID, &user2, &contest, &round, &cp)

	status := dispatch(t, store, env, jobs.Job{Type: jobs.ReselectFinal, CreatedAt: time.Now().UTC(), AuxID: &cp})
	require.Equal(t, jobs.Done, status)

	require.False(t, fetchFinal(t, store, old1))
	require.True(t, fetchFinal(t, store, new1))
	require.True(t, fetchFinal(t, store, only2))
}

func fetchFinal(t *testing.T, store *jobs.Store, submissionID int64) bool {
	t.Helper()
	var final bool
	require.NoError(t, store.DB().QueryRow(`SELECT contest_problem_final FROM submissions WHERE id = ?`, submissionID).Scan(&final))
	return final
}

func TestDeleteInternalFile_IsIdempotent(t *testing.T) {
	store := startMySQL(t)
	env := newEnv(t)

	res, err := store.DB().Exec(`INSERT INTO internal_files (created_at) VALUES (?)`, time.Now().UTC())
	require.NoError(t, err)
	fileID, err := res.LastInsertId()
	require.NoError(t, err)
	require.NoError(t, env.InternalFiles.Write(fileID, strings.NewReader("blob")))

	status := dispatch(t, store, env, jobs.Job{Type: jobs.DeleteInternalFile, CreatedAt: time.Now().UTC(), AuxID: &fileID})
	require.Equal(t, jobs.Done, status)
	require.False(t, env.InternalFiles.Has(fileID))

	var count int
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM internal_files WHERE id = ?`, fileID).Scan(&count))
	require.Zero(t, count)

	// Re-running against the now-gone file/row must not error (crash-recovery requeue).
	ctx := context.Background()
	tx, err := store.DB().BeginTx(ctx, nil)
	require.NoError(t, err)
	jobID, err := jobs.Insert(ctx, tx, jobs.Job{Type: jobs.DeleteInternalFile, CreatedAt: time.Now().UTC(), AuxID: &fileID})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	job := jobs.Job{ID: jobID, Type: jobs.DeleteInternalFile, CreatedAt: time.Now().UTC(), AuxID: &fileID}
	status, err = handlers.Dispatch(ctx, store.DB(), env, job)
	require.NoError(t, err)
	require.Equal(t, jobs.Done, status)
}

func TestDeleteProblem_CascadesSubmissionsAndSchedulesFileCleanup(t *testing.T) {
	store := startMySQL(t)
	env := newEnv(t)
	problemID := seedProblem(t, store)
	subID := seedSubmission(t, store, problemID, nil, nil, nil, nil)

	status := dispatch(t, store, env, jobs.Job{Type: jobs.DeleteProblem, CreatedAt: time.Now().UTC(), AuxID: &problemID})
	require.Equal(t, jobs.Done, status)

	var problemCount int
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM problems WHERE id = ?`, problemID).Scan(&problemCount))
	require.Zero(t, problemCount)

	var subCount int
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM submissions WHERE id = ?`, subID).Scan(&subCount))
	require.Zero(t, subCount, "FK cascade should have removed the submission")

	var pendingCleanup int
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM jobs WHERE type = ?`, int(jobs.DeleteInternalFile)).Scan(&pendingCleanup))
	require.GreaterOrEqual(t, pendingCleanup, 2, "expected cleanup jobs for the package file and the submission's source file")
}

func TestMergeProblems_RetargetsSubmissionsAndDeletesDonor(t *testing.T) {
	store := startMySQL(t)
	env := newEnv(t)
	donorID := seedProblem(t, store)
	targetID := seedProblem(t, store)
	subID := seedSubmission(t, store, donorID, nil, nil, nil, nil)

	status := dispatch(t, store, env, jobs.Job{Type: jobs.MergeProblems, CreatedAt: time.Now().UTC(), AuxID: &donorID, AuxID2: &targetID})
	require.Equal(t, jobs.Done, status)

	var donorCount int
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM problems WHERE id = ?`, donorID).Scan(&donorCount))
	require.Zero(t, donorCount)

	var gotProblemID int64
	require.NoError(t, store.DB().QueryRow(`SELECT problem_id FROM submissions WHERE id = ?`, subID).Scan(&gotProblemID))
	require.Equal(t, targetID, gotProblemID)

	var rejudgeCount int
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM jobs WHERE type = ? AND aux_id = ?`, int(jobs.RejudgeSubmission), subID).Scan(&rejudgeCount))
	require.Equal(t, 1, rejudgeCount)
}
