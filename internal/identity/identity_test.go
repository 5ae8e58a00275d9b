package identity

import (
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFingerprint_Deterministic(t *testing.T) {
	tests := []struct {
		name      string
		date      time.Time
		narration string
		amount    float64
		txType    domain.TransactionType
	}{
		{
			name:      "upi debit",
			date:      date(2024, 1, 5),
			narration: "UPI-Swiggy-food",
			amount:    450,
			txType:    domain.TransactionTypeDebit,
		},
		{
			name:      "salary credit",
			date:      date(2024, 1, 31),
			narration: "NEFT SALARY JAN",
			amount:    85000.50,
			txType:    domain.TransactionTypeCredit,
		},
		{
			name:      "fractional amount",
			date:      date(2024, 2, 1),
			narration: "INTEREST",
			amount:    12.345, // formats as 12.35 either call
			txType:    domain.TransactionTypeCredit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Fingerprint(tt.date, tt.narration, tt.amount, tt.txType)
			if err != nil {
				t.Fatalf("Fingerprint() error = %v", err)
			}
			if len(got) != 64 {
				t.Errorf("Fingerprint() length = %d, want 64 hex chars", len(got))
			}
			again, err := Fingerprint(tt.date, tt.narration, tt.amount, tt.txType)
			if err != nil {
				t.Fatalf("Fingerprint() second call error = %v", err)
			}
			if got != again {
				t.Errorf("Fingerprint() not deterministic: %s != %s", got, again)
			}
		})
	}
}

func TestFingerprint_ByteSensitive(t *testing.T) {
	base, err := Fingerprint(date(2024, 1, 5), "UPI-Swiggy-food", 450, domain.TransactionTypeDebit)
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}

	variants := []struct {
		name      string
		date      time.Time
		narration string
		amount    float64
		txType    domain.TransactionType
	}{
		{"different date", date(2024, 1, 6), "UPI-Swiggy-food", 450, domain.TransactionTypeDebit},
		{"trailing space", date(2024, 1, 5), "UPI-Swiggy-food ", 450, domain.TransactionTypeDebit},
		{"different case", date(2024, 1, 5), "upi-swiggy-food", 450, domain.TransactionTypeDebit},
		{"different amount", date(2024, 1, 5), "UPI-Swiggy-food", 450.01, domain.TransactionTypeDebit},
		{"different type", date(2024, 1, 5), "UPI-Swiggy-food", 450, domain.TransactionTypeCredit},
	}

	seen := map[string]string{base: "base"}
	for _, v := range variants {
		got, err := Fingerprint(v.date, v.narration, v.amount, v.txType)
		if err != nil {
			t.Fatalf("%s: Fingerprint() error = %v", v.name, err)
		}
		if prev, dup := seen[got]; dup {
			t.Errorf("%s collides with %s", v.name, prev)
		}
		seen[got] = v.name
	}
}

func TestFingerprint_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		date   time.Time
		amount float64
		txType domain.TransactionType
	}{
		{"zero date", time.Time{}, 450, domain.TransactionTypeDebit},
		{"zero amount", date(2024, 1, 5), 0, domain.TransactionTypeDebit},
		{"negative amount", date(2024, 1, 5), -450, domain.TransactionTypeDebit},
		{"unknown type", date(2024, 1, 5), 450, domain.TransactionType("refund")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fingerprint(tt.date, "x", tt.amount, tt.txType)
			if !errors.Is(err, domain.ErrInvalidTransactionFields) {
				t.Errorf("Fingerprint() error = %v, want ErrInvalidTransactionFields", err)
			}
		})
	}
}

func TestForTransaction(t *testing.T) {
	tx := &domain.Transaction{
		Date:        date(2024, 1, 5),
		Narration:   "UPI-Swiggy-food",
		DebitAmount: 450,
	}

	id, err := ForTransaction(tx)
	if err != nil {
		t.Fatalf("ForTransaction() error = %v", err)
	}

	want, err := Fingerprint(tx.Date, tx.Narration, 450, domain.TransactionTypeDebit)
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	if id != want {
		t.Errorf("ForTransaction() = %s, want %s", id, want)
	}
	if tx.Amount != 0 || tx.Type != "" {
		t.Errorf("ForTransaction() mutated transaction: amount=%v type=%q", tx.Amount, tx.Type)
	}
}

func TestForTransaction_AmbiguousColumns(t *testing.T) {
	tests := []struct {
		name   string
		debit  float64
		credit float64
	}{
		{"both zero", 0, 0},
		{"both set", 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &domain.Transaction{
				Date:         date(2024, 1, 5),
				Narration:    "x",
				DebitAmount:  tt.debit,
				CreditAmount: tt.credit,
			}
			if _, err := ForTransaction(tx); !errors.Is(err, domain.ErrInvalidTransactionFields) {
				t.Errorf("ForTransaction() error = %v, want ErrInvalidTransactionFields", err)
			}
		})
	}
}

func TestAssignAll(t *testing.T) {
	txs := []*domain.Transaction{
		{Date: date(2024, 1, 5), Narration: "UPI-Swiggy-food", DebitAmount: 450},
		{Date: date(2024, 1, 10), Narration: "NEFT SALARY", CreditAmount: 8000},
		{Date: date(2024, 1, 12), Narration: "ATM WDL", DebitAmount: 2000},
	}

	if err := AssignAll(txs); err != nil {
		t.Fatalf("AssignAll() error = %v", err)
	}

	for i, tx := range txs {
		if tx.TransactionID == "" {
			t.Errorf("transaction %d has no ID", i)
		}
		if tx.Amount == 0 || tx.Type == "" {
			t.Errorf("transaction %d not derived: amount=%v type=%q", i, tx.Amount, tx.Type)
		}
	}

	if txs[0].Type != domain.TransactionTypeDebit || txs[1].Type != domain.TransactionTypeCredit {
		t.Errorf("derived types wrong: %q, %q", txs[0].Type, txs[1].Type)
	}
}

func TestAssignAll_ReportsLowestBadIndex(t *testing.T) {
	txs := []*domain.Transaction{
		{Date: date(2024, 1, 5), Narration: "ok", DebitAmount: 450},
		{Date: time.Time{}, Narration: "bad date", DebitAmount: 100},
		{Date: date(2024, 1, 7), Narration: "both zero"},
	}

	err := AssignAll(txs)
	if err == nil {
		t.Fatal("AssignAll() expected error")
	}
	var fe *domain.InvalidTransactionFieldsError
	if !errors.As(err, &fe) {
		t.Fatalf("AssignAll() error = %T, want InvalidTransactionFieldsError", err)
	}
	if fe.Index != 1 {
		t.Errorf("AssignAll() reported index %d, want 1", fe.Index)
	}
}
