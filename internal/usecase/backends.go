package usecase

import (
	"context"
	"fmt"

	"github.com/c12qe/c12sim-go/internal/domain"
)

// ListBackendsUsecase lists the simulator backends visible to the gateway token.
type ListBackendsUsecase struct {
	client Simulator
}

// NewListBackendsUsecase creates a new ListBackendsUsecase.
func NewListBackendsUsecase(client Simulator) *ListBackendsUsecase {
	return &ListBackendsUsecase{client: client}
}

// Execute returns the backends whose name contains name; empty keeps all.
func (uc *ListBackendsUsecase) Execute(ctx context.Context, name string) ([]domain.BackendInfo, error) {
	backends, err := uc.client.GetBackends(ctx)
	if err != nil {
		return nil, fmt.Errorf("list backends: %w", err)
	}
	return domain.FilterBackends(backends, name), nil
}
