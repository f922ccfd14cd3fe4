package invoicing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tilver/backend/internal/domain/invoicing"
	"github.com/tilver/backend/internal/domain/shared"
)

type mockArchiver struct {
	mock.Mock
}

func (m *mockArchiver) Archive(ctx context.Context, inv *invoicing.Invoice) (string, error) {
	args := m.Called(ctx, inv)
	return args.String(0), args.Error(1)
}

func TestInvoiceSentArchiveHandler(t *testing.T) {
	ctx := context.Background()
	tenant := uuid.New()
	actor := shared.NewUserActor(uuid.New())
	inv := sentInvoice(t, tenant, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))

	t.Run("archives on SENT", func(t *testing.T) {
		repo := new(MockInvoiceRepository)
		repo.On("GetByID", ctx, tenant, inv.ID).Return(inv, nil)
		archiver := new(mockArchiver)
		archiver.On("Archive", ctx, inv).Return("invoices/x.json", nil).Once()

		h := NewInvoiceSentArchiveHandler(repo, archiver, nil)
		event := invoicing.NewInvoiceStatusChangedEvent(inv, invoicing.InvoiceStatusPending, invoicing.InvoiceStatusSent, actor)
		require.NoError(t, h.Handle(ctx, event))
		archiver.AssertExpectations(t)
	})

	t.Run("ignores other transitions", func(t *testing.T) {
		repo := new(MockInvoiceRepository)
		archiver := new(mockArchiver)
		h := NewInvoiceSentArchiveHandler(repo, archiver, nil)

		event := invoicing.NewInvoiceStatusChangedEvent(inv, invoicing.InvoiceStatusSent, invoicing.InvoiceStatusPaid, actor)
		require.NoError(t, h.Handle(ctx, event))
		archiver.AssertNotCalled(t, "Archive", mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("archive failure is not returned", func(t *testing.T) {
		repo := new(MockInvoiceRepository)
		repo.On("GetByID", ctx, tenant, inv.ID).Return(inv, nil)
		archiver := new(mockArchiver)
		archiver.On("Archive", ctx, inv).Return("", errors.New("bucket unreachable"))

		h := NewInvoiceSentArchiveHandler(repo, archiver, nil)
		event := invoicing.NewInvoiceStatusChangedEvent(inv, invoicing.InvoiceStatusPending, invoicing.InvoiceStatusSent, actor)
		assert.NoError(t, h.Handle(ctx, event))
	})

	t.Run("rejects foreign events", func(t *testing.T) {
		h := NewInvoiceSentArchiveHandler(new(MockInvoiceRepository), new(mockArchiver), nil)
		assert.Error(t, h.Handle(ctx, invoicing.NewInvoiceCreatedEvent(inv, actor)))
	})

	assert.Equal(t, []string{invoicing.EventTypeInvoiceStatusChanged},
		NewInvoiceSentArchiveHandler(nil, nil, nil).EventTypes())
}
