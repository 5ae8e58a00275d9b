package bigquery

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

// LedgerRow is the BigQuery representation of one per-user ledger. The
// engine's read-modify-write contract is fetch-existing -> merge ->
// upsert-same-row; Revision is the optimistic-concurrency guard for the
// upsert.
type LedgerRow struct {
	LedgerID string `bigquery:"ledger_id"` // REQUIRED
	UserID   string `bigquery:"user_id"`   // REQUIRED, unique per row

	// Transactions is the date-serialized JSON array of the ledger's
	// transactions. BigQuery NUMERIC cannot hold a REPEATED RECORD of this
	// shape cheaply, and the engine always reads the full sequence anyway.
	Transactions string `bigquery:"transactions"` // REQUIRED JSON string

	FirstDate civil.Date `bigquery:"first_date"` // REQUIRED
	LastDate  civil.Date `bigquery:"last_date"`  // REQUIRED

	TotalDebit      *big.Rat `bigquery:"total_debit"`      // REQUIRED NUMERIC
	TotalCredit     *big.Rat `bigquery:"total_credit"`     // REQUIRED NUMERIC
	NetCashflow     *big.Rat `bigquery:"net_cashflow"`     // REQUIRED NUMERIC
	StartingBalance *big.Rat `bigquery:"starting_balance"` // REQUIRED NUMERIC
	EndingBalance   *big.Rat `bigquery:"ending_balance"`   // REQUIRED NUMERIC

	SummaryStartDate bigquery.NullDate `bigquery:"summary_start_date"` // NULLABLE
	SummaryEndDate   bigquery.NullDate `bigquery:"summary_end_date"`   // NULLABLE

	TransactionCount int64 `bigquery:"transaction_count"`
	CreditCount      int64 `bigquery:"credit_count"`
	DebitCount       int64 `bigquery:"debit_count"`

	Revision int64 `bigquery:"revision"`

	CreatedTS time.Time              `bigquery:"created_ts"`
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"`
}

// RowFromLedger converts a domain ledger into its BigQuery row.
func RowFromLedger(l *domain.Ledger) (*LedgerRow, error) {
	txJSON, err := json.Marshal(l.Transactions)
	if err != nil {
		return nil, fmt.Errorf("RowFromLedger: marshal transactions: %w", err)
	}

	row := &LedgerRow{
		LedgerID:         l.ID,
		UserID:           l.UserID,
		Transactions:     string(txJSON),
		FirstDate:        civil.DateOf(l.FirstDate),
		LastDate:         civil.DateOf(l.LastDate),
		TotalDebit:       ratFromAmount(l.Summary.TotalDebit),
		TotalCredit:      ratFromAmount(l.Summary.TotalCredit),
		NetCashflow:      ratFromAmount(l.Summary.NetCashflow),
		StartingBalance:  ratFromAmount(l.Summary.StartingBalance),
		EndingBalance:    ratFromAmount(l.Summary.EndingBalance),
		TransactionCount: int64(l.Summary.TransactionCount),
		CreditCount:      int64(l.Summary.CreditCount),
		DebitCount:       int64(l.Summary.DebitCount),
		Revision:         l.Revision,
	}
	if !l.Summary.StartDate.IsZero() {
		row.SummaryStartDate = bigquery.NullDate{Date: civil.DateOf(l.Summary.StartDate), Valid: true}
	}
	if !l.Summary.EndDate.IsZero() {
		row.SummaryEndDate = bigquery.NullDate{Date: civil.DateOf(l.Summary.EndDate), Valid: true}
	}
	return row, nil
}

// ToLedger converts a BigQuery row back into the domain ledger.
func (r *LedgerRow) ToLedger() (*domain.Ledger, error) {
	var txs []*domain.Transaction
	if r.Transactions != "" {
		if err := json.Unmarshal([]byte(r.Transactions), &txs); err != nil {
			return nil, fmt.Errorf("ToLedger: unmarshal transactions for user %s: %w", r.UserID, err)
		}
	}

	l := &domain.Ledger{
		ID:           r.LedgerID,
		UserID:       r.UserID,
		Transactions: txs,
		FirstDate:    r.FirstDate.In(time.UTC),
		LastDate:     r.LastDate.In(time.UTC),
		Revision:     r.Revision,
		Summary: domain.StatementSummary{
			TotalDebit:       amountFromRat(r.TotalDebit),
			TotalCredit:      amountFromRat(r.TotalCredit),
			NetCashflow:      amountFromRat(r.NetCashflow),
			StartingBalance:  amountFromRat(r.StartingBalance),
			EndingBalance:    amountFromRat(r.EndingBalance),
			TransactionCount: int(r.TransactionCount),
			CreditCount:      int(r.CreditCount),
			DebitCount:       int(r.DebitCount),
		},
	}
	if r.SummaryStartDate.Valid {
		l.Summary.StartDate = r.SummaryStartDate.Date.In(time.UTC)
	}
	if r.SummaryEndDate.Valid {
		l.Summary.EndDate = r.SummaryEndDate.Date.In(time.UTC)
	}
	return l, nil
}

// ratFromAmount converts a float64 currency amount to NUMERIC with two
// decimal places, the precision the fingerprint scheme fixes.
func ratFromAmount(v float64) *big.Rat {
	return big.NewRat(int64(math.Round(v*100)), 100)
}

func amountFromRat(r *big.Rat) float64 {
	if r == nil {
		return 0
	}
	f, _ := r.Float64()
	return f
}
