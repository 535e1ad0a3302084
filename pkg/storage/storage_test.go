package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenUnreachablePathFails(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing", "test.sqlite")); err == nil {
		t.Fatal("expected error opening a database in a missing directory")
	}
}

func TestBrandInvariant(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.InsertBrand(ctx, Brand{Name: "Acme Bank", HasAccount: true})
	if !errors.Is(err, ErrBrandInvariant) {
		t.Fatalf("expected ErrBrandInvariant, got %v", err)
	}

	if _, err := db.InsertBrand(ctx, Brand{Name: "Acme Bank", HasAccount: true, AccountID: 1000, Username: "AcmeBank_OK"}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertBrand(ctx, Brand{Name: "Acme Credit Union"}); err != nil {
		t.Fatal(err)
	}

	brands, err := db.Brands(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(brands) != 2 {
		t.Fatalf("expected 2 brands, got %d", len(brands))
	}
}

func TestAlertLedgerDedup(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	alerted, err := db.HasAlerted(ctx, 2, 77)
	if err != nil {
		t.Fatal(err)
	}
	if alerted {
		t.Fatal("empty ledger reported an alert")
	}

	a := Alert{ID: 555, ScammerID: 2, VictimID: 77, VictimUsername: "Victim1", TweetID: 56789}
	if err := db.RecordAlert(ctx, a); err != nil {
		t.Fatal(err)
	}
	// Same pair from a different tweet must not create a second record.
	dup := Alert{ID: 556, ScammerID: 2, VictimID: 77, VictimUsername: "Victim1", TweetID: 99999}
	if err := db.RecordAlert(ctx, dup); err != nil {
		t.Fatal(err)
	}

	alerts, err := db.RecentAlerts(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert after duplicate record, got %d", len(alerts))
	}
	if alerts[0].ID != 555 {
		t.Fatalf("expected the first record to win, got id %d", alerts[0].ID)
	}

	alerted, err = db.HasAlerted(ctx, 2, 77)
	if err != nil {
		t.Fatal(err)
	}
	if !alerted {
		t.Fatal("ledger lost the recorded alert")
	}

	byTweet, err := db.HasAlertedTweet(ctx, 2, 56789)
	if err != nil {
		t.Fatal(err)
	}
	if !byTweet {
		t.Fatal("tweet-keyed lookup missed the recorded alert")
	}
}

func TestCursorMonotonicity(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	brandID, err := db.InsertBrand(ctx, Brand{Name: "Acme Bank", HasAccount: true, AccountID: 1000, Username: "AcmeBank_OK"})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertScammer(ctx, Scammer{ID: 2, Username: "BadGuy", BrandID: brandID}); err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		advance int64
		want    int64
	}{
		{100, 100},
		{50, 100},  // regressions are ignored
		{100, 100}, // idempotent
		{200, 200},
	}
	for _, step := range steps {
		if err := db.AdvanceCursor(ctx, 2, step.advance); err != nil {
			t.Fatal(err)
		}
		scammers, err := db.ActiveScammers(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(scammers) != 1 {
			t.Fatalf("expected 1 scammer, got %d", len(scammers))
		}
		if got := scammers[0].SinceID; got != step.want {
			t.Fatalf("after AdvanceCursor(%d): since_id = %d, want %d", step.advance, got, step.want)
		}
	}
}

func TestUpsertScammerPreservesCursor(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	brandID, err := db.InsertBrand(ctx, Brand{Name: "Acme Bank", HasAccount: true, AccountID: 1000, Username: "AcmeBank_OK"})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertScammer(ctx, Scammer{ID: 2, Username: "BadGuy", BrandID: brandID}); err != nil {
		t.Fatal(err)
	}
	if err := db.AdvanceCursor(ctx, 2, 500); err != nil {
		t.Fatal(err)
	}
	// Re-discovering the same scammer must not reset its watermark.
	if err := db.UpsertScammer(ctx, Scammer{ID: 2, Username: "BadGuyRenamed", BrandID: brandID}); err != nil {
		t.Fatal(err)
	}

	scammers, err := db.ActiveScammers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if scammers[0].SinceID != 500 {
		t.Fatalf("upsert reset the cursor: since_id = %d, want 500", scammers[0].SinceID)
	}
	if scammers[0].Username != "BadGuyRenamed" {
		t.Fatalf("upsert did not refresh the username: %s", scammers[0].Username)
	}
}

func TestDeactivateScammers(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	brandID, err := db.InsertBrand(ctx, Brand{Name: "Acme Bank", HasAccount: true, AccountID: 1000, Username: "AcmeBank_OK"})
	if err != nil {
		t.Fatal(err)
	}
	for id := int64(1); id <= 3; id++ {
		if err := db.UpsertScammer(ctx, Scammer{ID: id, Username: "bad", BrandID: brandID}); err != nil {
			t.Fatal(err)
		}
	}

	n, err := db.DeactivateScammers(ctx, []int64{1, 3})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 deactivations, got %d", n)
	}

	active, err := db.ActiveScammers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].ID != 2 {
		t.Fatalf("expected only scammer 2 active, got %+v", active)
	}
}

func TestBrandCacheFindByUsername(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.InsertBrand(ctx, Brand{Name: "Acme Bank", HasAccount: true, AccountID: 1000, Username: "AcmeBank_OK"}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertBrand(ctx, Brand{Name: "Zeta Insurance", HasAccount: true, AccountID: 2000, Username: "ZetaSeguros"}); err != nil {
		t.Fatal(err)
	}

	cache := NewBrandCache(db)
	if err := cache.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	b, ok := cache.FindByUsername("acmebank_ok")
	if !ok || b.Name != "Acme Bank" {
		t.Fatalf("exact username lookup failed: %+v ok=%v", b, ok)
	}

	b, ok = cache.FindByUsername("AcmeBankHelp")
	if !ok || b.Name != "Acme Bank" {
		t.Fatalf("similarity lookup failed: %+v ok=%v", b, ok)
	}
}

func TestScammerByUsernameIsCaseInsensitive(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	brandID, err := db.InsertBrand(ctx, Brand{Name: "Acme Bank", HasAccount: true, AccountID: 1000, Username: "AcmeBank_OK"})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertScammer(ctx, Scammer{ID: 2, Username: "BadGuy", BrandID: brandID, CreatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	s, ok, err := db.ScammerByUsername(ctx, "badguy")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || s.ID != 2 {
		t.Fatalf("case-insensitive lookup failed: %+v ok=%v", s, ok)
	}
}
