package query

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/Veraticus/tachyon/internal/model"
	"github.com/Veraticus/tachyon/internal/service"
	"github.com/google/uuid"
)

// HistorySource fetches the purchase history a query searches.
type HistorySource interface {
	History(ctx context.Context, name string) ([]model.HistoryEntry, error)
}

// SampleHistoryDays bounds how far back generated entries reach.
const SampleHistoryDays = 90

// TimestampLayout is the fixed-width layout of history timestamps, so they
// sort lexically.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// SampleHistory generates a plausible random history for any user. It
// stands in for a real store in demos.
type SampleHistory struct {
	now   func() time.Time
	rng   *rand.Rand
	Count int
	mu    sync.Mutex
}

// NewSampleHistory returns a generator of count entries per call. A nil
// rng is seeded from the clock.
func NewSampleHistory(count int, rng *rand.Rand) *SampleHistory {
	if count <= 0 {
		count = 10
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // demo data
	}
	return &SampleHistory{Count: count, rng: rng, now: time.Now}
}

var (
	sampleStoreTypes = []string{"Pharmacy", "Grocery", "Clothing"}
	sampleTags       = []string{"food", "health", "electronics", "home"}
	sampleItems      = []string{"dolo-650", "paracetamol", "syrup"}
)

// History returns Count entries dated within the last SampleHistoryDays
// days, newest first.
func (s *SampleHistory) History(_ context.Context, name string) ([]model.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := s.now().UTC()
	entries := make([]model.HistoryEntry, 0, s.Count)
	for range s.Count {
		id := uuid.NewString()
		ts := base.AddDate(0, 0, -s.rng.Intn(SampleHistoryDays))
		tags := s.rng.Perm(len(sampleTags))[:2]

		entries = append(entries, model.HistoryEntry{
			DocumentID: id,
			Metadata: model.HistoryMetadata{
				DocumentID:     id,
				Username:       name,
				Timestamp:      ts.Format(TimestampLayout),
				GSTNumber:      fmt.Sprintf("%d", 100000000000+s.rng.Int63n(900000000000)),
				AdditionalInfo: map[string]string{"store_type": sampleStoreTypes[s.rng.Intn(len(sampleStoreTypes))]},
				Tags:           []string{sampleTags[tags[0]], sampleTags[tags[1]]},
			},
			Item: model.HistoryItem{
				DocumentID: id,
				ItemName:   sampleItems[s.rng.Intn(len(sampleItems))],
				ItemType:   "medicine",
				Quantity:   1 + s.rng.Intn(20),
				Price:      float64(1000+s.rng.Intn(19001)) / 100,
				Validity:   fmt.Sprintf("%d days", 10+s.rng.Intn(51)),
			},
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Metadata.Timestamp > entries[j].Metadata.Timestamp
	})
	return entries, nil
}

// StoreHistory reads history from stored expense records.
type StoreHistory struct {
	store service.RecordStore
	limit int
}

// NewStoreHistory returns a history source backed by store. A non-positive
// limit returns every record.
func NewStoreHistory(store service.RecordStore, limit int) *StoreHistory {
	return &StoreHistory{store: store, limit: limit}
}

// History converts the user's records, newest first.
func (s *StoreHistory) History(ctx context.Context, name string) ([]model.HistoryEntry, error) {
	records, err := s.store.GetUserRecords(ctx, name, s.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", name, err)
	}

	entries := make([]model.HistoryEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, entryFromRecord(r))
	}
	return entries, nil
}

func entryFromRecord(r model.ExpenseRecord) model.HistoryEntry {
	info := map[string]string{"location": r.Location()}
	entry := model.HistoryEntry{
		DocumentID: r.ID,
		Metadata: model.HistoryMetadata{
			DocumentID:     r.ID,
			Username:       r.UserID,
			Timestamp:      r.CreatedAt.UTC().Format(TimestampLayout),
			AdditionalInfo: info,
		},
		Item: model.HistoryItem{DocumentID: r.ID},
	}

	for key, v := range r.Fields {
		switch key {
		case "item_name", "name", "vendor":
			if s, ok := v.(string); ok && entry.Item.ItemName == "" {
				entry.Item.ItemName = s
			}
		case "item_type", "category":
			if s, ok := v.(string); ok {
				entry.Item.ItemType = s
			}
		case "price", "amount":
			if f, ok := v.(float64); ok {
				entry.Item.Price = f
			}
		case "quantity":
			if f, ok := v.(float64); ok {
				entry.Item.Quantity = int(f)
			}
		case "gst_number":
			if s, ok := v.(string); ok {
				entry.Metadata.GSTNumber = s
			}
		default:
			if s, ok := v.(string); ok {
				info[key] = s
			}
		}
	}
	return entry
}
