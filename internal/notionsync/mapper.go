package notionsync

import (
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

// LedgerToNotionProperties converts a ledger into the properties of its
// summary page in the Ledgers database. One page per user; the User ID title
// property is the upsert key.
func LedgerToNotionProperties(l *domain.Ledger) notionapi.Properties {
	props := notionapi.Properties{
		"User ID": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: l.UserID,
					},
				},
			},
		},
		"Transactions": notionapi.NumberProperty{
			Number: float64(l.Summary.TransactionCount),
		},
		"Total Debit": notionapi.NumberProperty{
			Number: l.Summary.TotalDebit,
		},
		"Total Credit": notionapi.NumberProperty{
			Number: l.Summary.TotalCredit,
		},
		"Net Cashflow": notionapi.NumberProperty{
			Number: l.Summary.NetCashflow,
		},
		"Starting Balance": notionapi.NumberProperty{
			Number: l.Summary.StartingBalance,
		},
		"Ending Balance": notionapi.NumberProperty{
			Number: l.Summary.EndingBalance,
		},
		"Revision": notionapi.NumberProperty{
			Number: float64(l.Revision),
		},
	}

	if !l.FirstDate.IsZero() && !l.LastDate.IsZero() {
		start := notionapi.Date(l.FirstDate)
		end := notionapi.Date(l.LastDate)
		props["Covered Period"] = notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: &start,
				End:   &end,
			},
		}
	}

	synced := notionapi.Date(time.Now().UTC())
	props["Last Synced"] = notionapi.DateProperty{
		Date: &notionapi.DateObject{
			Start: &synced,
		},
	}

	return props
}

// extractUserID extracts the user ID from a Notion page's title property.
// Returns empty string if not found.
func extractUserID(page notionapi.Page) string {
	if prop, ok := page.Properties["User ID"]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			if len(title.Title) > 0 {
				return title.Title[0].PlainText
			}
		}
	}
	return ""
}
