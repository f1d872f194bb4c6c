package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"loan-engine/internal/domain"
	"loan-engine/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pdf = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")

type memBlobs struct {
	mu    sync.Mutex
	items map[string][]byte
	fail  error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{items: make(map[string][]byte)}
}

func (b *memBlobs) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return "", b.fail
	}
	b.items[key] = data
	return "ref/" + key, nil
}

func (b *memBlobs) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

func validInput() SubmitInput {
	return SubmitInput{
		Amount:     decimal.RequireFromString("20000"),
		Duration:   48,
		Income:     decimal.RequireFromString("3500"),
		IDDocument: Upload{FileName: "passport.pdf", ContentType: "application/pdf", Data: pdf},
		SalarySlip: Upload{FileName: "Salary.PDF", Data: pdf},
	}
}

func fixedClock() func() time.Time {
	t := time.Date(2026, 5, 10, 8, 30, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func newTestRegistry(opts ...Option) (*Registry, *repository.ApplicationMemoryRepository, *memBlobs) {
	store := repository.NewApplicationMemoryRepository()
	blobs := newMemBlobs()
	opts = append([]Option{WithClock(fixedClock())}, opts...)
	return New(store, blobs, opts...), store, blobs
}

func okProducer(calls *int32) DocumentProducer {
	return func(_ context.Context, c domain.LoanApplication) (domain.DocumentRefs, error) {
		atomic.AddInt32(calls, 1)
		return domain.DocumentRefs{
			Contract:     c.ID + "_contract.pdf",
			Amortization: c.ID + "_amortization.pdf",
		}, nil
	}
}

func TestSubmit_CreatesSubmittedApplication(t *testing.T) {
	reg, _, blobs := newTestRegistry(WithIDGenerator(func() string { return "app-1" }))
	ctx := context.Background()

	app, err := reg.Submit(ctx, validInput())
	require.NoError(t, err)

	assert.Equal(t, "app-1", app.ID)
	assert.Equal(t, domain.StatusSubmitted, app.Status)
	assert.True(t, app.AnnualRate.Equal(DefaultAnnualRate))
	assert.True(t, app.MonthlyPayment.IsPositive())
	assert.Nil(t, app.ContractRef)
	assert.Nil(t, app.ApprovedAt)
	assert.Equal(t, fixedClock()(), app.CreatedAt)
	assert.Equal(t, "ref/app-1_id.pdf", app.IDDocumentRef)
	assert.Equal(t, "ref/app-1_salary.pdf", app.SalarySlipRef)
	assert.Equal(t, 2, blobs.count())

	got, err := reg.Get(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, app.ID, got.ID)

	n, err := reg.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSubmit_InvalidTerms(t *testing.T) {
	reg, _, blobs := newTestRegistry()
	ctx := context.Background()

	cases := map[string]func(*SubmitInput){
		"zero amount":     func(in *SubmitInput) { in.Amount = decimal.Zero },
		"negative amount": func(in *SubmitInput) { in.Amount = decimal.RequireFromString("-5") },
		"zero duration":   func(in *SubmitInput) { in.Duration = 0 },
		"too long":        func(in *SubmitInput) { in.Duration = 361 },
		"zero income":     func(in *SubmitInput) { in.Income = decimal.Zero },
		"negative income": func(in *SubmitInput) { in.Income = decimal.RequireFromString("-1") },
		"sub-cent amount": func(in *SubmitInput) { in.Amount = decimal.RequireFromString("0.004") },
		"sub-cent income": func(in *SubmitInput) { in.Income = decimal.RequireFromString("0.004") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			mutate(&in)
			_, err := reg.Submit(ctx, in)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}

	n, _ := reg.Len(ctx)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, blobs.count())
}

func TestSubmit_InvalidDocuments(t *testing.T) {
	reg, _, blobs := newTestRegistry()
	ctx := context.Background()

	cases := map[string]func(*SubmitInput){
		"missing id document": func(in *SubmitInput) { in.IDDocument = Upload{} },
		"missing salary slip": func(in *SubmitInput) { in.SalarySlip.Data = nil },
		"wrong extension":     func(in *SubmitInput) { in.IDDocument.FileName = "passport.png" },
		"wrong content type":  func(in *SubmitInput) { in.SalarySlip.ContentType = "image/png" },
		"not a pdf":           func(in *SubmitInput) { in.IDDocument.Data = []byte("\x89PNG\r\n\x1a\n0000") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			mutate(&in)
			_, err := reg.Submit(ctx, in)
			assert.ErrorIs(t, err, domain.ErrInvalidDocument)
		})
	}

	n, _ := reg.Len(ctx)
	assert.Equal(t, 0, n, "registry size must not change on rejected uploads")
	assert.Equal(t, 0, blobs.count())
}

func TestSubmit_StorageFailure(t *testing.T) {
	reg, _, blobs := newTestRegistry()
	diskFull := errors.New("disk full")
	blobs.fail = diskFull

	_, err := reg.Submit(context.Background(), validInput())
	assert.ErrorIs(t, err, diskFull)
	assert.Nil(t, domain.KindOf(err), "storage faults are not a client error")

	n, _ := reg.Len(context.Background())
	assert.Equal(t, 0, n)
}

func TestSubmit_UsesConfiguredRateAndMaxDuration(t *testing.T) {
	reg, _, _ := newTestRegistry(WithAnnualRate(decimal.Zero), WithMaxDuration(12))

	in := validInput()
	in.Amount = decimal.RequireFromString("1200")
	in.Duration = 12
	app, err := reg.Submit(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, app.MonthlyPayment.Equal(decimal.RequireFromString("100")), "got %s", app.MonthlyPayment)

	in.Duration = 13
	_, err = reg.Submit(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestList_InsertionOrder(t *testing.T) {
	var seq int32
	reg, _, _ := newTestRegistry(WithIDGenerator(func() string {
		return fmt.Sprintf("id-%02d", atomic.AddInt32(&seq, 1))
	}))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := reg.Submit(ctx, validInput())
		require.NoError(t, err)
	}

	list, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 4)
	for i, app := range list {
		assert.Equal(t, fmt.Sprintf("id-%02d", i+1), app.ID)
	}
}

func TestGet_NotFound(t *testing.T) {
	reg, _, _ := newTestRegistry()

	_, err := reg.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = reg.Get(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestApprove_CommitsRefsAndTimestamp(t *testing.T) {
	reg, _, _ := newTestRegistry()
	ctx := context.Background()

	app, err := reg.Submit(ctx, validInput())
	require.NoError(t, err)

	var calls int32
	var seen domain.LoanApplication
	approved, err := reg.Approve(ctx, app.ID, func(ctx context.Context, c domain.LoanApplication) (domain.DocumentRefs, error) {
		seen = c
		return okProducer(&calls)(ctx, c)
	})
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls)
	assert.Equal(t, domain.StatusApproved, seen.Status, "producer must see the approved candidate")
	assert.NotNil(t, seen.ApprovedAt)

	assert.Equal(t, domain.StatusApproved, approved.Status)
	require.NotNil(t, approved.ContractRef)
	require.NotNil(t, approved.AmortizationRef)
	assert.Equal(t, app.ID+"_contract.pdf", *approved.ContractRef)
	assert.Equal(t, app.ID+"_amortization.pdf", *approved.AmortizationRef)
	assert.Equal(t, fixedClock()(), *approved.ApprovedAt)
	assert.NoError(t, approved.Validate(0))

	stored, _ := reg.Get(ctx, app.ID)
	assert.Equal(t, domain.StatusApproved, stored.Status)
}

func TestApprove_NotFound(t *testing.T) {
	reg, _, _ := newTestRegistry()
	var calls int32

	_, err := reg.Approve(context.Background(), "ghost", okProducer(&calls))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, calls)
}

func TestApprove_Twice(t *testing.T) {
	reg, _, _ := newTestRegistry()
	ctx := context.Background()
	app, _ := reg.Submit(ctx, validInput())

	var calls int32
	_, err := reg.Approve(ctx, app.ID, okProducer(&calls))
	require.NoError(t, err)

	_, err = reg.Approve(ctx, app.ID, okProducer(&calls))
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, int32(1), calls)
}

func TestApprove_ProducerFailureLeavesSubmitted(t *testing.T) {
	reg, _, _ := newTestRegistry()
	ctx := context.Background()
	app, _ := reg.Submit(ctx, validInput())

	_, err := reg.Approve(ctx, app.ID, func(context.Context, domain.LoanApplication) (domain.DocumentRefs, error) {
		return domain.DocumentRefs{}, errors.New("renderer exploded")
	})
	assert.ErrorIs(t, err, domain.ErrGenerationFailure)

	stored, _ := reg.Get(ctx, app.ID)
	assert.Equal(t, domain.StatusSubmitted, stored.Status)
	assert.Nil(t, stored.ContractRef)

	// retry succeeds
	var calls int32
	_, err = reg.Approve(ctx, app.ID, okProducer(&calls))
	assert.NoError(t, err)
}

func TestApprove_MissingRefs(t *testing.T) {
	reg, _, _ := newTestRegistry()
	ctx := context.Background()
	app, _ := reg.Submit(ctx, validInput())

	_, err := reg.Approve(ctx, app.ID, func(context.Context, domain.LoanApplication) (domain.DocumentRefs, error) {
		return domain.DocumentRefs{Contract: "only-one"}, nil
	})
	assert.ErrorIs(t, err, domain.ErrGenerationFailure)
}

func TestApprove_ConcurrentSameID(t *testing.T) {
	reg, _, _ := newTestRegistry()
	ctx := context.Background()
	app, _ := reg.Submit(ctx, validInput())

	var (
		calls     int32
		successes int32
		conflicts int32
		wg        sync.WaitGroup
		start     = make(chan struct{})
	)
	produce := func(ctx context.Context, c domain.LoanApplication) (domain.DocumentRefs, error) {
		time.Sleep(5 * time.Millisecond)
		return okProducer(&calls)(ctx, c)
	}

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := reg.Approve(ctx, app.ID, produce)
			switch {
			case err == nil:
				atomic.AddInt32(&successes, 1)
			case errors.Is(err, domain.ErrInvalidTransition):
				atomic.AddInt32(&conflicts, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), successes)
	assert.Equal(t, int32(7), conflicts)
	assert.Equal(t, int32(1), calls, "documents must be generated exactly once")
	assert.Equal(t, 0, reg.local.size())
}

func TestApprove_DifferentIDsRunInParallel(t *testing.T) {
	var seq int32
	reg, _, _ := newTestRegistry(WithIDGenerator(func() string {
		return fmt.Sprintf("p-%d", atomic.AddInt32(&seq, 1))
	}))
	ctx := context.Background()
	a, _ := reg.Submit(ctx, validInput())
	b, _ := reg.Submit(ctx, validInput())

	entered := make(chan struct{}, 2)
	releaseProducers := make(chan struct{})
	produce := func(_ context.Context, c domain.LoanApplication) (domain.DocumentRefs, error) {
		entered <- struct{}{}
		<-releaseProducers
		return domain.DocumentRefs{Contract: "c", Amortization: "a"}, nil
	}

	errs := make(chan error, 2)
	for _, id := range []string{a.ID, b.ID} {
		go func(id string) {
			_, err := reg.Approve(ctx, id, produce)
			errs <- err
		}(id)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-entered:
		case <-time.After(2 * time.Second):
			t.Fatal("approvals of different applications did not overlap")
		}
	}
	close(releaseProducers)

	for i := 0; i < 2; i++ {
		assert.NoError(t, <-errs)
	}
}

type recordingLocker struct {
	mu       sync.Mutex
	acquired []string
	released int
	err      error
}

func (l *recordingLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	l.acquired = append(l.acquired, key)
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		l.released++
		l.mu.Unlock()
	}, nil
}

func TestApprove_UsesDistributedLocker(t *testing.T) {
	locker := &recordingLocker{}
	reg, _, _ := newTestRegistry(WithLocker(locker, time.Second))
	ctx := context.Background()
	app, _ := reg.Submit(ctx, validInput())

	var calls int32
	_, err := reg.Approve(ctx, app.ID, okProducer(&calls))
	require.NoError(t, err)

	assert.Equal(t, []string{"approve:" + app.ID}, locker.acquired)
	assert.Equal(t, 1, locker.released)
}

func TestApprove_LockerFailure(t *testing.T) {
	locker := &recordingLocker{err: errors.New("lock timeout")}
	reg, _, _ := newTestRegistry(WithLocker(locker, time.Second))
	ctx := context.Background()
	app, _ := reg.Submit(ctx, validInput())

	var calls int32
	_, err := reg.Approve(ctx, app.ID, okProducer(&calls))
	assert.Error(t, err)
	assert.Zero(t, calls)

	stored, _ := reg.Get(ctx, app.ID)
	assert.Equal(t, domain.StatusSubmitted, stored.Status)
}

func TestKeyedMutex_ContextCancel(t *testing.T) {
	k := newKeyedMutex()
	unlock, err := k.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Lock(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	assert.Equal(t, 0, k.size())
}
