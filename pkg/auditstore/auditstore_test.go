// Integration tests require a live Postgres reachable via
// TRUSTVM_TEST_DB; they no-op otherwise so `go test ./...` stays usable
// without a database.
package auditstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/certen/trustvm/pkg/config"
	"github.com/certen/trustvm/pkg/types"
)

var testClient *Client

func TestMain(m *testing.M) {
	connStr := os.Getenv("TRUSTVM_TEST_DB")
	if connStr == "" {
		os.Exit(0)
	}

	cfg := &config.Config{DatabaseURL: connStr, DatabaseMaxConns: 5, DatabaseMinConns: 1}
	c, err := NewClient(cfg)
	if err != nil {
		panic("connect to test database: " + err.Error())
	}
	if err := c.MigrateUp(context.Background()); err != nil {
		panic("migrate test database: " + err.Error())
	}
	testClient = c

	code := m.Run()
	c.Close()
	os.Exit(code)
}

func TestFraudRepositoryInsertAndCount(t *testing.T) {
	if testClient == nil {
		t.Skip("test database not configured")
	}
	repo := NewFraudRepository(testClient)
	ctx := context.Background()

	fraudster := types.BytesToAddress([]byte{0xaa})
	rec := &types.FraudRecord{
		TxHash: types.BytesToHash([]byte("tx-audit")), Fraudster: fraudster,
		ClaimedScore: 90, ActualScore: 60, ScoreDifference: 30,
		ReputationPenalty: 15, BondSlashed: 50, BlockHeight: 1, Timestamp: time.Now(),
	}
	if err := repo.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	count, err := repo.CountByFraudster(ctx, fraudster)
	if err != nil {
		t.Fatalf("CountByFraudster: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected count=1, got %d", count)
	}
	testClient.DB().ExecContext(ctx, "DELETE FROM fraud_records WHERE fraudster = $1", fraudster.Hex())
}

func TestDisputeRepositoryUpsert(t *testing.T) {
	if testClient == nil {
		t.Skip("test database not configured")
	}
	repo := NewDisputeRepository(testClient)
	ctx := context.Background()

	d := &types.DisputeCase{
		DisputeID: types.BytesToHash([]byte("dispute-audit")),
		Sender:    types.BytesToAddress([]byte{0xbb}),
		Reason:    "low WoT coverage",
	}
	if err := repo.Upsert(ctx, d); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	unresolved, err := repo.UnresolvedCount(ctx)
	if err != nil {
		t.Fatalf("UnresolvedCount: %v", err)
	}
	if unresolved < 1 {
		t.Fatal("expected at least one unresolved dispute")
	}

	d.Resolved = true
	d.Approved = true
	d.ResolutionTimestamp = time.Now()
	if err := repo.Upsert(ctx, d); err != nil {
		t.Fatalf("Upsert (resolve): %v", err)
	}
	resolvedAt, err := repo.ResolvedAt(ctx, d.DisputeID)
	if err != nil {
		t.Fatalf("ResolvedAt: %v", err)
	}
	if resolvedAt.IsZero() {
		t.Fatal("expected non-zero resolution timestamp")
	}
	testClient.DB().ExecContext(ctx, "DELETE FROM dispute_cases WHERE dispute_id = $1", d.DisputeID.Hex())
}
