package crm

import (
	"context"

	"github.com/google/uuid"
)

// ClientRepository defines read access to client records.
type ClientRepository interface {
	GetClient(ctx context.Context, id uuid.UUID) (*Client, error)
}

// InstallmentRepository defines read access to installment records.
type InstallmentRepository interface {
	ListUnpaidByClient(ctx context.Context, clientID uuid.UUID) ([]Installment, error)
	GetInstallment(ctx context.Context, id uuid.UUID) (*Installment, error)
}

// RepositoryPort is the combined port the credit service depends on.
type RepositoryPort interface {
	ClientRepository
	InstallmentRepository
}
