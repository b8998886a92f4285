package test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"bapflow/actor"
	"bapflow/attachment"
	"bapflow/document"
	"bapflow/test/actors"
	"bapflow/test/chaos"
	"bapflow/test/infra"
	"bapflow/test/oracles"
)

var (
	flDuration    = flag.Duration("duration", 90*time.Second, "how long to run stress")
	flConcurrency = flag.Int("concurrency", 8, "number of concurrent actors")
	flSeed        = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flDSN         = flag.String("dsn", "", "existing Postgres DSN to reuse (avoids Docker)")
)

func seedRNG(seed int64) { rand.Seed(seed) }

// TestApprovalConcurrency hammers both document kinds with competing vendors,
// reviewers, and approvers while a chaos goroutine kills backends, and checks
// the SQL oracles every few seconds. Any oracle row is a consistency bug.
func TestApprovalConcurrency(t *testing.T) {
	flag.Parse()
	seed := *flSeed
	seedRNG(seed)

	var (
		pgC        *infra.PGContainer
		dsn        string
		err        error
		usedShared bool
	)
	ctx, cancel := context.WithTimeout(context.Background(), *flDuration+60*time.Second)
	defer cancel()

	switch {
	case *flDSN != "":
		dsn = *flDSN
		usedShared = true
		pgC = &infra.PGContainer{}
	case os.Getenv("BAPFLOW_STRESS_PG_DSN") != "":
		dsn = os.Getenv("BAPFLOW_STRESS_PG_DSN")
		usedShared = true
		pgC = &infra.PGContainer{}
	default:
		if dockerAvailable(ctx) {
			pgC, dsn, err = infra.StartPostgres16(ctx, "")
			if err != nil {
				t.Fatalf("start postgres: %v", err)
			}
		} else {
			dsn, err = infra.InitLocalDatabase(ctx)
			if err != nil {
				t.Fatalf("init local database: %v", err)
			}
			pgC = &infra.PGContainer{}
		}
	}
	defer pgC.Terminate(context.Background())

	pool, teardown, err := infra.ApplyMigrations(ctx, dsn, usedShared)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	defer pool.Close()
	defer func() {
		if err := teardown(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	}()

	idents := mustSeed(t, ctx, pool)
	eng := document.NewEngine(pool, nil, nil, attachment.NewRepository())

	g, ctx2 := errgroup.WithContext(ctx)
	stop := make(chan struct{})

	for _, kind := range []document.Kind{document.KindBAPB, document.KindBAPP} {
		kind := kind
		contested := fmt.Sprintf("%s-CONTESTED-%d", kind, seed)

		for i := 0; i < *flConcurrency/2; i++ {
			vendor := idents.vendors[i%len(idents.vendors)]
			g.Go(func() error {
				return actors.Vendor(ctx2, eng, vendor, kind, contested, stop)
			})
		}
		// Two reviewers racing over the same submitted documents.
		g.Go(func() error { return actors.Reviewer(ctx2, pool, eng, idents.pic, kind, stop) })
		g.Go(func() error { return actors.Reviewer(ctx2, pool, eng, idents.pic, kind, stop) })
		g.Go(func() error { return actors.PicApprover(ctx2, pool, eng, idents.pic, kind, stop) })
		g.Go(func() error { return actors.DireksiApprover(ctx2, pool, eng, idents.direksi, kind, stop) })
	}

	go chaos.TerminateRandomBackend(ctx2, pool, stop)

	deadline := time.Now().Add(*flDuration)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var failed bool
loop:
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			name, row, err := oracles.Run(ctx2, pool)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					break loop
				}
				t.Fatalf("oracle error: %v", err)
			}
			if name != "" {
				failed = true
				dumpRecent(t, ctx2, pool)
				t.Fatalf("Oracle %s failed. First row: %s (seed=%d)", name, row, seed)
			}
		}
	}

	close(stop)
	if err := g.Wait(); err != nil && !failed {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("actors errored: %v", err)
		}
	}
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}

type seedIdentities struct {
	vendors []actor.Identity
	pic     actor.Identity
	direksi actor.Identity
}

func mustSeed(t *testing.T, ctx context.Context, pool *pgxpool.Pool) seedIdentities {
	t.Helper()
	var s seedIdentities

	insert := func(role, name string) actor.Identity {
		var id string
		email := fmt.Sprintf("%s%d@example.com", role, rand.Int63())
		if err := pool.QueryRow(ctx, `INSERT INTO users (email, full_name, role) VALUES ($1, $2, $3) RETURNING id`,
			email, name, role).Scan(&id); err != nil {
			t.Fatalf("seed %s: %v", role, err)
		}
		return actor.Identity{ActorID: id, Role: actor.Role(role), DisplayName: name}
	}

	s.vendors = []actor.Identity{
		insert("vendor", "PT Stress Satu"),
		insert("vendor", "PT Stress Dua"),
	}
	s.pic = insert("pic", "Stress PIC")
	s.direksi = insert("direksi", "Stress Direksi")
	return s
}

func dumpRecent(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	type dump struct {
		name string
		sql  string
	}
	dumps := []dump{
		{"documents", `SELECT id, kind, document_number, status, updated_at FROM documents ORDER BY updated_at DESC LIMIT 50`},
		{"history_entries", `SELECT id, kind, document_id, action, status_before, status_after, created_at FROM history_entries ORDER BY created_at DESC LIMIT 50`},
	}
	for _, d := range dumps {
		rows, err := pool.Query(ctx, d.sql)
		if err != nil {
			t.Logf("dump %s error: %v", d.name, err)
			continue
		}
		cols := rows.FieldDescriptions()
		t.Logf("-- %s --", d.name)
		for rows.Next() {
			vals, _ := rows.Values()
			buf := make([]any, 0, len(vals))
			for i := range vals {
				buf = append(buf, fmt.Sprintf("%s=%v", string(cols[i].Name), vals[i]))
			}
			t.Logf("%s", buf)
		}
		rows.Close()
	}
}
