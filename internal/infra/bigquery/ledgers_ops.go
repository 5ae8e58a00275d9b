package bigquery

import (
	"context"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	bq "github.com/dvloznov/statement-ledger/internal/bigquery"
	"github.com/dvloznov/statement-ledger/internal/domain"
)

const (
	datasetID    = "finance"
	ledgersTable = "ledgers"
)

// projectID resolves the GCP project from the environment, falling back to
// client-side detection (ADC metadata).
func projectID() string {
	if p := os.Getenv("BQ_PROJECT"); p != "" {
		return p
	}
	return bigquery.DetectProjectID
}

// GetLedgerByUser fetches the user's ledger row, creating a throwaway
// client. Returns (nil, nil) when the user has no ledger yet.
func GetLedgerByUser(ctx context.Context, userID string) (*domain.Ledger, error) {
	client, err := bigquery.NewClient(ctx, projectID())
	if err != nil {
		return nil, fmt.Errorf("GetLedgerByUser: bigquery client: %w", err)
	}
	defer client.Close()

	return GetLedgerByUserWithClient(ctx, client, userID)
}

// GetLedgerByUserWithClient fetches the user's ledger row using the
// provided BigQuery client.
func GetLedgerByUserWithClient(ctx context.Context, client *bigquery.Client, userID string) (*domain.Ledger, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			ledger_id,
			user_id,
			transactions,
			first_date,
			last_date,
			total_debit,
			total_credit,
			net_cashflow,
			starting_balance,
			ending_balance,
			summary_start_date,
			summary_end_date,
			transaction_count,
			credit_count,
			debit_count,
			revision,
			created_ts,
			updated_ts
		FROM %s.%s
		WHERE user_id = @user_id
		LIMIT 1
	`, datasetID, ledgersTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetLedgerByUser: query read: %w", err)
	}

	var row bq.LedgerRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetLedgerByUser: iter next: %w", err)
	}

	return row.ToLedger()
}

// UpsertLedgerWithClient writes the merged ledger back to its row with an
// optimistic revision guard: the update only applies when the stored
// revision still matches the revision the ledger was loaded with, and the
// insert only applies for revision zero (first merge). Zero affected rows
// means another merge won the race; the caller gets
// domain.ErrPersistenceConflict and can reload + re-merge.
func UpsertLedgerWithClient(ctx context.Context, client *bigquery.Client, l *domain.Ledger) (*domain.Ledger, error) {
	row, err := bq.RowFromLedger(l)
	if err != nil {
		return nil, fmt.Errorf("UpsertLedger: %w", err)
	}

	newRevision := l.Revision + 1
	now := time.Now().UTC()

	q := client.Query(fmt.Sprintf(`
		MERGE %s.%s T
		USING (SELECT @user_id AS user_id) S
		ON T.user_id = S.user_id
		WHEN MATCHED AND T.revision = @expected_revision THEN UPDATE SET
			ledger_id = @ledger_id,
			transactions = @transactions,
			first_date = @first_date,
			last_date = @last_date,
			total_debit = @total_debit,
			total_credit = @total_credit,
			net_cashflow = @net_cashflow,
			starting_balance = @starting_balance,
			ending_balance = @ending_balance,
			summary_start_date = @summary_start_date,
			summary_end_date = @summary_end_date,
			transaction_count = @transaction_count,
			credit_count = @credit_count,
			debit_count = @debit_count,
			revision = @new_revision,
			updated_ts = @now
		WHEN NOT MATCHED AND @expected_revision = 0 THEN INSERT (
			ledger_id, user_id, transactions, first_date, last_date,
			total_debit, total_credit, net_cashflow, starting_balance,
			ending_balance, summary_start_date, summary_end_date,
			transaction_count, credit_count, debit_count, revision, created_ts
		) VALUES (
			@ledger_id, @user_id, @transactions, @first_date, @last_date,
			@total_debit, @total_credit, @net_cashflow, @starting_balance,
			@ending_balance, @summary_start_date, @summary_end_date,
			@transaction_count, @credit_count, @debit_count, @new_revision, @now
		)
	`, datasetID, ledgersTable))

	var summaryStart, summaryEnd interface{}
	if row.SummaryStartDate.Valid {
		summaryStart = row.SummaryStartDate.Date
	} else {
		summaryStart = bigquery.NullDate{}
	}
	if row.SummaryEndDate.Valid {
		summaryEnd = row.SummaryEndDate.Date
	} else {
		summaryEnd = bigquery.NullDate{}
	}

	q.Parameters = []bigquery.QueryParameter{
		{Name: "ledger_id", Value: row.LedgerID},
		{Name: "user_id", Value: row.UserID},
		{Name: "transactions", Value: row.Transactions},
		{Name: "first_date", Value: civil.Date(row.FirstDate)},
		{Name: "last_date", Value: civil.Date(row.LastDate)},
		{Name: "total_debit", Value: row.TotalDebit},
		{Name: "total_credit", Value: row.TotalCredit},
		{Name: "net_cashflow", Value: row.NetCashflow},
		{Name: "starting_balance", Value: row.StartingBalance},
		{Name: "ending_balance", Value: row.EndingBalance},
		{Name: "summary_start_date", Value: summaryStart},
		{Name: "summary_end_date", Value: summaryEnd},
		{Name: "transaction_count", Value: row.TransactionCount},
		{Name: "credit_count", Value: row.CreditCount},
		{Name: "debit_count", Value: row.DebitCount},
		{Name: "expected_revision", Value: l.Revision},
		{Name: "new_revision", Value: newRevision},
		{Name: "now", Value: now},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("UpsertLedger: running merge query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("UpsertLedger: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return nil, fmt.Errorf("UpsertLedger: job error: %w", err)
	}

	var affected int64
	if qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
		affected = qs.NumDMLAffectedRows
	}
	if affected == 0 {
		return nil, fmt.Errorf("UpsertLedger: user %s revision %d: %w", l.UserID, l.Revision, domain.ErrPersistenceConflict)
	}

	updated := l.Clone()
	updated.Revision = newRevision
	return updated, nil
}
