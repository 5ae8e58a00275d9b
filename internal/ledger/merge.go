// Package ledger implements the consolidation engine: folding parsed
// statement batches into the per-user canonical transaction ledger with
// content-hash deduplication, balance-continuity repair and a derived
// summary. The engine is pure with respect to its inputs - it returns a new
// ledger and never mutates the arguments - so persistence stays an explicit,
// separate step (see internal/pipeline).
package ledger

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/identity"
	"github.com/dvloznov/statement-ledger/internal/interval"
)

// Service is the stateless merge engine. It holds configuration only, no
// per-user or per-call state, so one instance can serve all users as long
// as the caller serializes merges for the same user.
type Service struct {
	log          zerolog.Logger
	gapTolerance time.Duration
}

// NewService creates a merge engine logging through the given logger.
func NewService(log zerolog.Logger) *Service {
	return &Service{
		log:          log,
		gapTolerance: interval.DefaultGapTolerance,
	}
}

// MergeResult is the outcome of folding one batch into a ledger.
type MergeResult struct {
	Ledger *domain.Ledger

	Added      int  // transactions appended from the batch
	Duplicates int  // batch transactions discarded as already present
	Unchanged  bool // true when the merge was a no-op

	// Warnings lists balance-continuity repairs applied to the merged
	// sequence. They are recovered locally and never fail the merge.
	Warnings []BalanceWarning

	// OverlapStatements names previously merged batches whose date range
	// overlaps or adjoins the incoming batch's range. Overlap is expected
	// for re-uploads and back-to-back months; it is informational.
	OverlapStatements []string
}

// Merge folds a statement batch into the user's ledger, creating the ledger
// when none exists yet.
//
// Semantics:
//   - no ledger and an empty batch: domain.ErrEmptyLedger.
//   - existing ledger and an empty batch: no-op, the ledger is returned
//     unchanged.
//   - each batch transaction gets a content fingerprint; transactions whose
//     fingerprint already exists in the ledger are discarded, so re-uploads
//     are idempotent and the first upload wins StatementID attribution.
//   - the merged set is stably re-sorted by date, balances are repaired,
//     and the summary is recomputed from scratch.
//
// Any malformed transaction aborts the whole batch with
// domain.ErrInvalidTransactionFields before the ledger is touched.
func (s *Service) Merge(existing *domain.Ledger, batch *domain.StatementBatch) (*MergeResult, error) {
	if batch == nil || len(batch.Transactions) == 0 {
		if existing == nil {
			return nil, domain.ErrEmptyLedger
		}
		return &MergeResult{Ledger: existing.Clone(), Unchanged: true}, nil
	}

	// Work on copies: the incoming batch is treated as immutable.
	incoming := make([]*domain.Transaction, len(batch.Transactions))
	for i, tx := range batch.Transactions {
		cp := *tx
		incoming[i] = &cp
	}
	if err := identity.AssignAll(incoming); err != nil {
		return nil, err
	}

	result := &MergeResult{}

	var merged *domain.Ledger
	if existing == nil {
		merged = &domain.Ledger{
			ID:     uuid.NewString(),
			UserID: batch.UserID,
		}
	} else {
		merged = existing.Clone()
		result.OverlapStatements = s.overlappingStatements(merged, batch)
	}

	seen := make(map[string]struct{}, len(merged.Transactions)+len(incoming))
	for _, tx := range merged.Transactions {
		seen[tx.TransactionID] = struct{}{}
	}
	for _, tx := range incoming {
		if _, dup := seen[tx.TransactionID]; dup {
			result.Duplicates++
			continue
		}
		seen[tx.TransactionID] = struct{}{}
		tx.StatementID = batch.ID
		merged.Transactions = append(merged.Transactions, tx)
		result.Added++
	}

	if result.Added == 0 && existing != nil {
		// Pure re-upload: the transaction set is unchanged, so balances and
		// summary are already consistent.
		result.Ledger = merged
		result.Unchanged = true
		s.log.Info().
			Str("user_id", batch.UserID).
			Str("statement_id", batch.ID).
			Int("duplicates", result.Duplicates).
			Msg("Batch contained no new transactions")
		return result, nil
	}

	// Ties keep insertion order: existing ledger first, then batch order.
	sort.SliceStable(merged.Transactions, func(i, j int) bool {
		return merged.Transactions[i].Date.Before(merged.Transactions[j].Date)
	})

	merged.FirstDate, merged.LastDate = mergedBounds(existing, batch, merged.Transactions)

	result.Warnings = repairBalances(merged.Transactions)
	for _, w := range result.Warnings {
		s.log.Warn().
			Str("user_id", batch.UserID).
			Str("transaction_id", w.TransactionID).
			Int("index", w.Index).
			Float64("stated", w.Stated).
			Float64("expected", w.Expected).
			Float64("delta", w.Delta()).
			Msg("Repaired balance continuity violation")
	}

	merged.Summary = Aggregate(merged.Transactions)

	result.Ledger = merged
	s.log.Info().
		Str("user_id", batch.UserID).
		Str("statement_id", batch.ID).
		Int("added", result.Added).
		Int("duplicates", result.Duplicates).
		Int("total", len(merged.Transactions)).
		Int("repairs", len(result.Warnings)).
		Int("overlapping_statements", len(result.OverlapStatements)).
		Msg("Merged statement batch into ledger")

	return result, nil
}

// overlappingStatements rebuilds the per-statement date-range index from the
// ledger's transactions and queries it with the incoming batch's range. The
// index is derived state: statement ranges are the min/max dates of the
// transactions each batch contributed.
func (s *Service) overlappingStatements(l *domain.Ledger, batch *domain.StatementBatch) []string {
	type span struct {
		start time.Time
		end   time.Time
	}
	spans := make(map[string]*span)
	for _, tx := range l.Transactions {
		sp, ok := spans[tx.StatementID]
		if !ok {
			spans[tx.StatementID] = &span{start: tx.Date, end: tx.Date}
			continue
		}
		if tx.Date.Before(sp.start) {
			sp.start = tx.Date
		}
		if tx.Date.After(sp.end) {
			sp.end = tx.Date
		}
	}

	ix := interval.NewIndex()
	for id, sp := range spans {
		ix.Insert(interval.Interval{GroupID: id, Start: sp.start, End: sp.end})
	}

	start, end := batchBounds(batch)
	groups := ix.FindOverlapping(start, end, s.gapTolerance)

	names := make([]string, 0, len(groups))
	for g := range groups {
		names = append(names, g)
	}
	sort.Strings(names)
	return names
}

// batchBounds prefers the parser's stated summary range and falls back to
// the transactions themselves when the summary is incomplete.
func batchBounds(batch *domain.StatementBatch) (time.Time, time.Time) {
	start, end := batch.Summary.StartDate, batch.Summary.EndDate
	if !start.IsZero() && !end.IsZero() {
		return start, end
	}
	for _, tx := range batch.Transactions {
		if start.IsZero() || tx.Date.Before(start) {
			start = tx.Date
		}
		if end.IsZero() || tx.Date.After(end) {
			end = tx.Date
		}
	}
	return start, end
}

// mergedBounds widens the ledger's covered range with the batch's range.
func mergedBounds(existing *domain.Ledger, batch *domain.StatementBatch, txs []*domain.Transaction) (time.Time, time.Time) {
	start, end := batchBounds(batch)
	if existing != nil {
		if !existing.FirstDate.IsZero() && existing.FirstDate.Before(start) {
			start = existing.FirstDate
		}
		if existing.LastDate.After(end) {
			end = existing.LastDate
		}
	}
	// Guard against a summary narrower than the data it describes.
	if len(txs) > 0 {
		if first := txs[0].Date; first.Before(start) || start.IsZero() {
			start = first
		}
		if last := txs[len(txs)-1].Date; last.After(end) {
			end = last
		}
	}
	return start, end
}

// IsRetryable reports whether a merge/persist error is safe to retry as-is.
// Persistence conflicts are: merge is idempotent, so re-running the same
// merge against a freshly loaded ledger converges.
func IsRetryable(err error) bool {
	return errors.Is(err, domain.ErrPersistenceConflict)
}
