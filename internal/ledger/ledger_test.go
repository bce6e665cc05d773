package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/moneywise/balance-ledger/internal/interfaces"
	"github.com/moneywise/balance-ledger/internal/models"
	"github.com/moneywise/balance-ledger/internal/storage/memory"
)

func adjustment(amount int64) func(decimal.Decimal) (models.LedgerEntry, error) {
	return func(decimal.Decimal) (models.LedgerEntry, error) {
		return models.LedgerEntry{
			Kind:   models.KindManualAdjustment,
			Amount: decimal.NewFromInt(amount),
		}, nil
	}
}

func mustBalance(t *testing.T, l *Ledger, accountID string) decimal.Decimal {
	t.Helper()
	bal, err := l.GetBalance(context.Background(), accountID)
	if err != nil {
		t.Fatalf("GetBalance(%s) err=%v", accountID, err)
	}
	return bal
}

func TestSubmitAppliesEntries(t *testing.T) {
	l := NewLedger(memory.NewMemoryLedgerStore())
	ctx := context.Background()

	bal, err := l.Submit(ctx, "acct-1", adjustment(100))
	if err != nil {
		t.Fatal(err)
	}
	if !bal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("balance=%s want=100", bal)
	}

	bal, err = l.Submit(ctx, "acct-1", adjustment(-40))
	if err != nil {
		t.Fatal(err)
	}
	if !bal.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("balance=%s want=60", bal)
	}

	entries, err := l.ActiveEntries(ctx, "acct-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("active entries=%d want=2", len(entries))
	}
}

func TestSubmitRejectsEmptyAccount(t *testing.T) {
	l := NewLedger(memory.NewMemoryLedgerStore())
	if _, err := l.Submit(context.Background(), "", adjustment(10)); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
}

func TestBuilderErrorAppendsNothing(t *testing.T) {
	l := NewLedger(memory.NewMemoryLedgerStore())
	ctx := context.Background()

	boom := errors.New("boom")
	_, err := l.Submit(ctx, "acct-1", func(decimal.Decimal) (models.LedgerEntry, error) {
		return models.LedgerEntry{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}

	entries, err := l.ActiveEntries(ctx, "acct-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("active entries=%d want=0", len(entries))
	}
	if bal := mustBalance(t, l, "acct-1"); !bal.IsZero() {
		t.Fatalf("balance=%s want=0", bal)
	}
}

// The cached balance must always equal a fold over the active entries, also
// after corrections and when a fresh Ledger projects the same store cold.
func TestBalanceMatchesActiveFold(t *testing.T) {
	store := memory.NewMemoryLedgerStore()
	l := NewLedger(store)
	ctx := context.Background()

	if _, err := l.Submit(ctx, "acct-1", adjustment(250)); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Submit(ctx, "acct-1", adjustment(-30)); err != nil {
		t.Fatal(err)
	}

	entries, err := l.ActiveEntries(ctx, "acct-1")
	if err != nil {
		t.Fatal(err)
	}
	// Correct the first entry down to 200.
	_, err = l.Submit(ctx, "acct-1", func(decimal.Decimal) (models.LedgerEntry, error) {
		return models.LedgerEntry{
			Kind:       models.KindManualAdjustment,
			Amount:     decimal.NewFromInt(200),
			Supersedes: entries[0].ID,
		}, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	active, err := l.ActiveEntries(ctx, "acct-1")
	if err != nil {
		t.Fatal(err)
	}
	fold := decimal.Zero
	for _, e := range active {
		fold = fold.Add(e.Amount)
	}

	cached := mustBalance(t, l, "acct-1")
	if !cached.Equal(fold) {
		t.Fatalf("cached=%s fold=%s", cached, fold)
	}
	if !cached.Equal(decimal.NewFromInt(170)) {
		t.Fatalf("balance=%s want=170", cached)
	}

	// A fresh ledger over the same store folds to the same value.
	cold := mustBalance(t, NewLedger(store), "acct-1")
	if !cold.Equal(cached) {
		t.Fatalf("cold=%s cached=%s", cold, cached)
	}
}

func TestSupersedingUnknownEntryFails(t *testing.T) {
	l := NewLedger(memory.NewMemoryLedgerStore())
	_, err := l.Submit(context.Background(), "acct-1", func(decimal.Decimal) (models.LedgerEntry, error) {
		return models.LedgerEntry{
			Kind:       models.KindManualAdjustment,
			Amount:     decimal.NewFromInt(10),
			Supersedes: "no-such-entry",
		}, nil
	})
	if !errors.Is(err, ErrNoActiveEntry) {
		t.Fatalf("want ErrNoActiveEntry, got %v", err)
	}
}

// Two concurrent submits for the same account must be totally ordered: the
// second builder observes the first one's result, and neither update is lost.
func TestSameAccountSubmitsSerialized(t *testing.T) {
	l := NewLedger(memory.NewMemoryLedgerStore())
	ctx := context.Background()

	var mu sync.Mutex
	var observed []decimal.Decimal

	submit := func(delta int64) error {
		_, err := l.Submit(ctx, "acct-1", func(current decimal.Decimal) (models.LedgerEntry, error) {
			mu.Lock()
			observed = append(observed, current)
			mu.Unlock()
			time.Sleep(30 * time.Millisecond) // widen the read-modify-write window
			return models.LedgerEntry{
				Kind:   models.KindManualAdjustment,
				Amount: decimal.NewFromInt(delta),
			}, nil
		})
		return err
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	deltas := []int64{10, -3}
	for i, d := range deltas {
		i, d := i, d
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = submit(d)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}

	if bal := mustBalance(t, l, "acct-1"); !bal.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("balance=%s want=7", bal)
	}

	// One builder ran first and saw zero; the other saw the first's delta.
	if len(observed) != 2 {
		t.Fatalf("observed %d currents, want 2", len(observed))
	}
	first, second := observed[0], observed[1]
	if !first.IsZero() {
		t.Fatalf("first builder observed %s, want 0", first)
	}
	if !second.Equal(decimal.NewFromInt(10)) && !second.Equal(decimal.NewFromInt(-3)) {
		t.Fatalf("second builder observed %s, want the first delta", second)
	}
}

// slowStore widens Append so the test can measure whether submissions for
// different accounts overlap.
type slowStore struct {
	interfaces.LedgerStore
	delay time.Duration
}

func (s slowStore) Append(ctx context.Context, entry models.LedgerEntry) (models.LedgerEntry, error) {
	time.Sleep(s.delay)
	return s.LedgerStore.Append(ctx, entry)
}

func TestDifferentAccountsDoNotBlockEachOther(t *testing.T) {
	const delay = 150 * time.Millisecond
	l := NewLedger(slowStore{LedgerStore: memory.NewMemoryLedgerStore(), delay: delay})
	ctx := context.Background()

	start := time.Now()
	var wg sync.WaitGroup
	for _, acct := range []string{"acct-x", "acct-y"} {
		acct := acct
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Submit(ctx, acct, adjustment(5)); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	// Serialized execution would take at least 2*delay.
	if elapsed := time.Since(start); elapsed >= 2*delay {
		t.Fatalf("submissions serialized across accounts: took %v", elapsed)
	}
}

func TestCancelWhileWaitingAppendsNothing(t *testing.T) {
	l := NewLedger(memory.NewMemoryLedgerStore())
	ctx := context.Background()

	entered := make(chan struct{})
	proceed := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := l.Submit(ctx, "acct-1", func(decimal.Decimal) (models.LedgerEntry, error) {
			close(entered)
			<-proceed
			return models.LedgerEntry{Kind: models.KindManualAdjustment, Amount: decimal.NewFromInt(10)}, nil
		})
		if err != nil {
			t.Error(err)
		}
	}()

	<-entered

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err := l.Submit(waitCtx, "acct-1", adjustment(99))
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("want ErrLockTimeout, got %v", err)
	}

	close(proceed)
	wg.Wait()

	entries, err := l.ActiveEntries(ctx, "acct-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("active entries=%d want=1 (cancelled submit must not append)", len(entries))
	}
	if bal := mustBalance(t, l, "acct-1"); !bal.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("balance=%s want=10", bal)
	}
}

func TestPostTransfer(t *testing.T) {
	l := NewLedger(memory.NewMemoryLedgerStore())
	ctx := context.Background()

	if _, err := l.Submit(ctx, "acct-a", adjustment(100)); err != nil {
		t.Fatal(err)
	}

	tr := models.Transfer{
		ID:          "tr-1",
		FromAccount: "acct-a",
		ToAccount:   "acct-b",
		Amount:      decimal.NewFromInt(40),
	}
	if err := l.PostTransfer(ctx, tr); err != nil {
		t.Fatal(err)
	}

	if bal := mustBalance(t, l, "acct-a"); !bal.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("from balance=%s want=60", bal)
	}
	if bal := mustBalance(t, l, "acct-b"); !bal.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("to balance=%s want=40", bal)
	}

	// Replaying the same transfer ID must not apply twice.
	if err := l.PostTransfer(ctx, tr); err != nil {
		t.Fatal(err)
	}
	if bal := mustBalance(t, l, "acct-a"); !bal.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("replayed transfer changed balance: %s", bal)
	}
}

func TestPostTransferValidation(t *testing.T) {
	l := NewLedger(memory.NewMemoryLedgerStore())
	ctx := context.Background()

	cases := []models.Transfer{
		{FromAccount: "", ToAccount: "b", Amount: decimal.NewFromInt(1)},
		{FromAccount: "a", ToAccount: "a", Amount: decimal.NewFromInt(1)},
		{FromAccount: "a", ToAccount: "b", Amount: decimal.Zero},
		{FromAccount: "a", ToAccount: "b", Amount: decimal.NewFromInt(-5)},
	}
	for _, tr := range cases {
		if err := l.PostTransfer(ctx, tr); !errors.Is(err, models.ErrValidation) {
			t.Fatalf("transfer %+v: want ErrValidation, got %v", tr, err)
		}
	}
}
