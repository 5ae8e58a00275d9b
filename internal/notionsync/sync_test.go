package notionsync

import (
	"context"
	"testing"
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/store/inmemory"
)

// MockNotionService records Notion calls for assertions.
type MockNotionService struct {
	Pages   []notionapi.Page
	Created []notionapi.Properties
	Updated map[string]notionapi.Properties
}

func (m *MockNotionService) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	m.Created = append(m.Created, properties)
	return &notionapi.Page{ID: notionapi.ObjectID("page-new")}, nil
}

func (m *MockNotionService) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if m.Updated == nil {
		m.Updated = make(map[string]notionapi.Properties)
	}
	m.Updated[pageID] = properties
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}

func (m *MockNotionService) QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return &notionapi.DatabaseQueryResponse{Results: m.Pages, HasMore: false}, nil
}

func seedLedger(t *testing.T, store *inmemory.Store, userID string) {
	t.Helper()
	l := &domain.Ledger{
		ID:     "ledger-" + userID,
		UserID: userID,
		Transactions: []*domain.Transaction{
			{
				Date:           time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
				Narration:      "UPI-Swiggy-food",
				DebitAmount:    450,
				ClosingBalance: 10000,
				TransactionID:  "tx-1",
			},
		},
		Summary: domain.StatementSummary{
			TotalDebit:       450,
			TransactionCount: 1,
			DebitCount:       1,
			EndingBalance:    10000,
		},
		FirstDate: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		LastDate:  time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
	}
	if _, err := store.UpsertLedger(context.Background(), l); err != nil {
		t.Fatalf("UpsertLedger() error = %v", err)
	}
}

func userPage(pageID, userID string) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(pageID),
		Properties: notionapi.Properties{
			"User ID": &notionapi.TitleProperty{
				Title: []notionapi.RichText{{PlainText: userID}},
			},
		},
	}
}

func TestSyncLedgers_CreatesPageForNewUser(t *testing.T) {
	store := inmemory.NewStore()
	seedLedger(t, store, "user-1")
	notion := &MockNotionService{}

	err := SyncLedgers(context.Background(), store, notion, "db-1", []string{"user-1"}, false)
	if err != nil {
		t.Fatalf("SyncLedgers() error = %v", err)
	}

	if len(notion.Created) != 1 {
		t.Fatalf("created pages = %d, want 1", len(notion.Created))
	}
	if len(notion.Updated) != 0 {
		t.Errorf("updated pages = %d, want 0", len(notion.Updated))
	}
}

func TestSyncLedgers_UpdatesExistingPage(t *testing.T) {
	store := inmemory.NewStore()
	seedLedger(t, store, "user-1")
	notion := &MockNotionService{
		Pages: []notionapi.Page{userPage("page-1", "user-1")},
	}

	err := SyncLedgers(context.Background(), store, notion, "db-1", []string{"user-1"}, false)
	if err != nil {
		t.Fatalf("SyncLedgers() error = %v", err)
	}

	if len(notion.Created) != 0 {
		t.Errorf("created pages = %d, want 0", len(notion.Created))
	}
	if _, ok := notion.Updated["page-1"]; !ok {
		t.Error("expected page-1 to be updated")
	}
}

func TestSyncLedgers_SkipsUserWithoutLedger(t *testing.T) {
	store := inmemory.NewStore()
	notion := &MockNotionService{}

	err := SyncLedgers(context.Background(), store, notion, "db-1", []string{"no-ledger"}, false)
	if err != nil {
		t.Fatalf("SyncLedgers() error = %v", err)
	}
	if len(notion.Created) != 0 || len(notion.Updated) != 0 {
		t.Error("no pages should be touched for a user without a ledger")
	}
}

func TestSyncLedgers_DryRunTouchesNothing(t *testing.T) {
	store := inmemory.NewStore()
	seedLedger(t, store, "user-1")
	notion := &MockNotionService{}

	err := SyncLedgers(context.Background(), store, notion, "db-1", []string{"user-1"}, true)
	if err != nil {
		t.Fatalf("SyncLedgers() error = %v", err)
	}
	if len(notion.Created) != 0 || len(notion.Updated) != 0 {
		t.Error("dry run must not create or update pages")
	}
}

func TestLedgerToNotionProperties(t *testing.T) {
	l := &domain.Ledger{
		UserID:   "user-1",
		Revision: 3,
		Summary: domain.StatementSummary{
			TotalDebit:       450,
			TotalCredit:      8000,
			NetCashflow:      7550,
			StartingBalance:  10450,
			EndingBalance:    18000,
			TransactionCount: 2,
		},
		FirstDate: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		LastDate:  time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}

	props := LedgerToNotionProperties(l)

	title, ok := props["User ID"].(notionapi.TitleProperty)
	if !ok || len(title.Title) != 1 || title.Title[0].Text.Content != "user-1" {
		t.Errorf("User ID property = %+v", props["User ID"])
	}
	if n, ok := props["Ending Balance"].(notionapi.NumberProperty); !ok || n.Number != 18000 {
		t.Errorf("Ending Balance = %+v", props["Ending Balance"])
	}
	if n, ok := props["Net Cashflow"].(notionapi.NumberProperty); !ok || n.Number != 7550 {
		t.Errorf("Net Cashflow = %+v", props["Net Cashflow"])
	}
	if _, ok := props["Covered Period"].(notionapi.DateProperty); !ok {
		t.Errorf("Covered Period = %+v", props["Covered Period"])
	}
}
