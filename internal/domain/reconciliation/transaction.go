package reconciliation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tilver/backend/internal/domain/shared"
	"github.com/tilver/backend/internal/domain/shared/valueobject"
)

// BankTransaction is one booked line of a bank statement. The ledger never
// edits transactions after import; it only reads them and links them.
type BankTransaction struct {
	shared.BaseEntity
	TenantID        uuid.UUID
	Amount          decimal.Decimal // signed: positive is money in
	BookingDate     time.Time
	CounterpartName string
	Purpose         string
	IBAN            string
	ImportHash      string
}

// NewBankTransaction creates an imported transaction and stamps its dedupe hash
func NewBankTransaction(
	tenantID uuid.UUID,
	amount decimal.Decimal,
	bookingDate time.Time,
	counterpartName, purpose, iban string,
) (*BankTransaction, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewMissingFieldError("tenant id")
	}
	if amount.IsZero() {
		return nil, shared.NewInvalidAmountError("Transaction amount cannot be zero")
	}
	if bookingDate.IsZero() {
		return nil, shared.NewMissingFieldError("booking date")
	}
	tx := &BankTransaction{
		BaseEntity:      shared.NewBaseEntity(),
		TenantID:        tenantID,
		Amount:          valueobject.RoundCents(amount),
		BookingDate:     bookingDate,
		CounterpartName: strings.TrimSpace(counterpartName),
		Purpose:         strings.TrimSpace(purpose),
		IBAN:            strings.ReplaceAll(strings.ToUpper(iban), " ", ""),
	}
	tx.ImportHash = ImportHash(tenantID, tx.BookingDate, tx.Amount, tx.CounterpartName, tx.Purpose)
	return tx, nil
}

// ImportHash identifies a statement row so re-importing the same file is a no-op
func ImportHash(tenantID uuid.UUID, bookingDate time.Time, amount decimal.Decimal, counterpart, purpose string) string {
	h := sha256.New()
	h.Write([]byte(tenantID.String()))
	h.Write([]byte{0})
	h.Write([]byte(bookingDate.Format("2006-01-02")))
	h.Write([]byte{0})
	h.Write([]byte(amount.StringFixed(2)))
	h.Write([]byte{0})
	h.Write([]byte(counterpart))
	h.Write([]byte{0})
	h.Write([]byte(purpose))
	return hex.EncodeToString(h.Sum(nil))
}

// IsIncoming reports money received
func (t *BankTransaction) IsIncoming() bool {
	return t.Amount.IsPositive()
}

// IsOutgoing reports money paid out
func (t *BankTransaction) IsOutgoing() bool {
	return t.Amount.IsNegative()
}

// AbsAmount returns the unsigned amount
func (t *BankTransaction) AbsAmount() decimal.Decimal {
	return t.Amount.Abs()
}

// StatementLine is one parsed row of a bank statement before it is bound to a tenant
type StatementLine struct {
	Row             int
	BookingDate     time.Time
	Amount          decimal.Decimal
	CounterpartName string
	Purpose         string
	IBAN            string
}

// ToTransaction binds the line to tenantID
func (l StatementLine) ToTransaction(tenantID uuid.UUID) (*BankTransaction, error) {
	return NewBankTransaction(tenantID, l.Amount, l.BookingDate, l.CounterpartName, l.Purpose, l.IBAN)
}

// LineError reports a statement row that could not be read
type LineError struct {
	Row     int
	Message string
}

func (e LineError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}
