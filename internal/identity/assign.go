package identity

import (
	"runtime"
	"sync"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

// AssignAll derives amount/type for every transaction in the batch, computes
// its fingerprint, and writes it to TransactionID. Identity computation is
// independent per transaction, so it is fanned out across a bounded worker
// pool and fanned back in; output order matches input order.
//
// Any invalid row fails the whole batch with InvalidTransactionFieldsError
// carrying the row index.
func AssignAll(txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	workers := runtime.NumCPU()
	if workers > len(txs) {
		workers = len(txs)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		firstErr error
	)
	indexes := make(chan int)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				tx := txs[i]
				if !tx.Derive() {
					mu.Lock()
					if firstErr == nil || isEarlier(i, firstErr) {
						firstErr = &domain.InvalidTransactionFieldsError{
							Index:  i,
							Reason: "exactly one of debit and credit must be positive",
						}
					}
					mu.Unlock()
					continue
				}
				id, err := Fingerprint(tx.Date, tx.Narration, tx.Amount, tx.Type)
				if err != nil {
					mu.Lock()
					if firstErr == nil || isEarlier(i, firstErr) {
						if fe, ok := err.(*domain.InvalidTransactionFieldsError); ok {
							fe.Index = i
						}
						firstErr = err
					}
					mu.Unlock()
					continue
				}
				tx.TransactionID = id
			}
		}()
	}

	for i := range txs {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return firstErr
}

// isEarlier keeps the lowest-index failure so the reported error is
// deterministic regardless of worker scheduling.
func isEarlier(i int, err error) bool {
	fe, ok := err.(*domain.InvalidTransactionFieldsError)
	return ok && i < fe.Index
}
