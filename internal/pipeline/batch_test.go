package pipeline

import (
	"strings"
	"testing"
	"time"
)

const validBatchJSON = `{
	"id": "batch-2024-01",
	"user_id": "user-1",
	"created_at": "2024-02-01T09:30:00Z",
	"transactions": [
		{
			"date": "2024-01-05",
			"narration": "UPI-Swiggy-food order",
			"debit_amount": 450.00,
			"closing_balance": 10000.00,
			"upi_id": "swiggy@icici",
			"merchant": "Swiggy"
		},
		{
			"date": "2024-01-31",
			"narration": "NEFT-ACME CORP-SALARY JAN",
			"credit_amount": 8000.00,
			"closing_balance": 18000.00,
			"chq_ref_number": "N031241234567"
		}
	]
}`

func TestDecodeBatch(t *testing.T) {
	batch, err := DecodeBatch([]byte(validBatchJSON))
	if err != nil {
		t.Fatalf("DecodeBatch() error = %v", err)
	}

	if batch.ID != "batch-2024-01" {
		t.Errorf("ID = %q, want batch-2024-01", batch.ID)
	}
	if batch.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", batch.UserID)
	}
	if !batch.CreatedAt.Equal(time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)) {
		t.Errorf("CreatedAt = %v", batch.CreatedAt)
	}
	if len(batch.Transactions) != 2 {
		t.Fatalf("len(Transactions) = %d, want 2", len(batch.Transactions))
	}

	first := batch.Transactions[0]
	if first.Narration != "UPI-Swiggy-food order" {
		t.Errorf("Narration = %q", first.Narration)
	}
	if first.DebitAmount != 450 || first.CreditAmount != 0 {
		t.Errorf("amounts = debit %v credit %v", first.DebitAmount, first.CreditAmount)
	}
	if first.ClosingBalance != 10000 {
		t.Errorf("ClosingBalance = %v", first.ClosingBalance)
	}
	if first.Merchant != "Swiggy" || first.UPIID != "swiggy@icici" {
		t.Errorf("optional fields = %q / %q", first.Merchant, first.UPIID)
	}

	second := batch.Transactions[1]
	if !second.Date.Equal(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Date = %v", second.Date)
	}
	if second.ChqRefNumber != "N031241234567" {
		t.Errorf("ChqRefNumber = %q", second.ChqRefNumber)
	}
}

func TestDecodeBatch_GeneratesIDWhenAbsent(t *testing.T) {
	raw := `{"user_id": "user-1", "transactions": []}`
	batch, err := DecodeBatch([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeBatch() error = %v", err)
	}
	if batch.ID == "" {
		t.Error("expected a generated batch ID")
	}
	if len(batch.Transactions) != 0 {
		t.Errorf("len(Transactions) = %d, want 0", len(batch.Transactions))
	}
}

func TestDecodeBatch_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{
			name:    "NotJSON",
			raw:     `{`,
			wantErr: "invalid JSON",
		},
		{
			name:    "MissingUserID",
			raw:     `{"transactions": []}`,
			wantErr: `missing required field "user_id"`,
		},
		{
			name:    "EmptyUserID",
			raw:     `{"user_id": "  ", "transactions": []}`,
			wantErr: `required field "user_id" is empty`,
		},
		{
			name:    "MissingTransactionsKey",
			raw:     `{"user_id": "user-1"}`,
			wantErr: "missing 'transactions' key",
		},
		{
			name:    "TransactionsNotArray",
			raw:     `{"user_id": "user-1", "transactions": {}}`,
			wantErr: "'transactions' is",
		},
		{
			name:    "TransactionMissingDate",
			raw:     `{"user_id": "user-1", "transactions": [{"narration": "x", "closing_balance": 1}]}`,
			wantErr: `missing required field "date"`,
		},
		{
			name:    "TransactionBadDate",
			raw:     `{"user_id": "user-1", "transactions": [{"date": "05/01/2024", "narration": "x", "closing_balance": 1}]}`,
			wantErr: "invalid date",
		},
		{
			name:    "TransactionMissingClosingBalance",
			raw:     `{"user_id": "user-1", "transactions": [{"date": "2024-01-05", "narration": "x"}]}`,
			wantErr: `missing required field "closing_balance"`,
		},
		{
			name:    "TransactionAmountWrongType",
			raw:     `{"user_id": "user-1", "transactions": [{"date": "2024-01-05", "narration": "x", "debit_amount": "450", "closing_balance": 1}]}`,
			wantErr: `field "debit_amount" has type`,
		},
		{
			name:    "BadCreatedAt",
			raw:     `{"user_id": "user-1", "created_at": "yesterday", "transactions": []}`,
			wantErr: "invalid created_at",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBatch([]byte(tt.raw))
			if err == nil {
				t.Fatal("DecodeBatch() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}
