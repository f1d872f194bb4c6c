package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"loan-engine/internal/domain"
)

// ApplicationMemoryRepository keeps applications in process memory.
// Values are stored and returned by copy.
type ApplicationMemoryRepository struct {
	mu    sync.RWMutex
	order []string
	items map[string]domain.LoanApplication
}

func NewApplicationMemoryRepository() *ApplicationMemoryRepository {
	return &ApplicationMemoryRepository{items: make(map[string]domain.LoanApplication)}
}

func (r *ApplicationMemoryRepository) Insert(ctx context.Context, app domain.LoanApplication) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[app.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, app.ID)
	}
	r.items[app.ID] = app
	r.order = append(r.order, app.ID)
	return nil
}

func (r *ApplicationMemoryRepository) FindByID(ctx context.Context, id string) (domain.LoanApplication, error) {
	if err := ctx.Err(); err != nil {
		return domain.LoanApplication{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	app, ok := r.items[id]
	if !ok {
		return domain.LoanApplication{}, domain.NewError(domain.ErrNotFound, id, "application not found")
	}
	return app, nil
}

func (r *ApplicationMemoryRepository) List(ctx context.Context) ([]domain.LoanApplication, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.LoanApplication, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.items[id])
	}
	return out, nil
}

func (r *ApplicationMemoryRepository) MarkApproved(ctx context.Context, id string, refs domain.DocumentRefs, approvedAt time.Time) (domain.LoanApplication, error) {
	if err := ctx.Err(); err != nil {
		return domain.LoanApplication{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	app, ok := r.items[id]
	if !ok {
		return domain.LoanApplication{}, domain.NewError(domain.ErrNotFound, id, "application not found")
	}
	if app.Status != domain.StatusSubmitted {
		return domain.LoanApplication{}, domain.Errorf(domain.ErrInvalidTransition, id, "cannot approve application in status %s", app.Status)
	}

	approved := app.Approved(refs, approvedAt)
	r.items[id] = approved
	return approved, nil
}

func (r *ApplicationMemoryRepository) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items), nil
}
