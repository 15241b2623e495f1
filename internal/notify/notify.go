// Package notify derives purchase-location notifications from a user's history.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Veraticus/tachyon/internal/model"
	"github.com/Veraticus/tachyon/internal/service"
	"github.com/Veraticus/tachyon/internal/tools"
)

// Kind classifies a notification.
type Kind string

// Notification kinds.
const (
	KindProbable Kind = "probable_purchase"
	KindRepeat   Kind = "repeat_visit"
)

// DefaultThreshold is the probability, in percent, above which a location is
// reported as a probable purchase.
const DefaultThreshold = 50.0

// Notification is one message for the user.
type Notification struct {
	Kind        Kind    `json:"kind"`
	Location    string  `json:"location"`
	Message     string  `json:"message"`
	Probability float64 `json:"probability"`
	Visits      int     `json:"visits"`
}

// Options tunes a Notifier.
type Options struct {
	// HistoryLimit caps how many records are scanned for locations.
	HistoryLimit int
	// MaxLocations caps how many locations are reported.
	MaxLocations int
	Threshold    float64
}

// Notifier ranks a user's most frequent locations and scores each with the
// location probability tool.
type Notifier struct {
	store  service.RecordStore
	tool   *tools.LocationProbability
	logger *slog.Logger
	opts   Options
}

// NewNotifier creates a Notifier over store.
func NewNotifier(store service.RecordStore, opts Options, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 100
	}
	if opts.MaxLocations <= 0 {
		opts.MaxLocations = 4
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	return &Notifier{
		store:  store,
		tool:   tools.NewLocationProbability(store, logger),
		logger: logger,
		opts:   opts,
	}
}

// LocationCount is a location and how often it appears in a history.
type LocationCount struct {
	Location string
	Visits   int
}

// TopLocations returns the distinct locations in records ordered by visit
// count, most frequent first. Ties keep first-seen order.
func TopLocations(records []model.ExpenseRecord, limit int) []LocationCount {
	index := make(map[string]int)
	var counts []LocationCount
	for _, record := range records {
		location := strings.TrimSpace(record.Location())
		if location == "" {
			continue
		}
		key := strings.ToLower(location)
		if i, ok := index[key]; ok {
			counts[i].Visits++
			continue
		}
		index[key] = len(counts)
		counts = append(counts, LocationCount{Location: location, Visits: 1})
	}

	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Visits > counts[j].Visits
	})
	if limit > 0 && len(counts) > limit {
		counts = counts[:limit]
	}
	return counts
}

// Notifications builds the notification list for uid. A user without
// history gets an empty list.
func (n *Notifier) Notifications(ctx context.Context, uid string) ([]Notification, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, fmt.Errorf("%w: uid is required", tools.ErrInvalidArgument)
	}

	records, err := n.store.GetUserRecords(ctx, uid, n.opts.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", uid, err)
	}

	var out []Notification
	for _, lc := range TopLocations(records, n.opts.MaxLocations) {
		result, err := n.tool.Calculate(ctx, uid, lc.Location)
		if err != nil {
			return nil, err
		}
		if result.NoData {
			continue
		}
		out = append(out, n.notification(lc, result.Value))
	}

	n.logger.Debug("built notifications", "uid", uid, "count", len(out))
	return out, nil
}

func (n *Notifier) notification(lc LocationCount, probability float64) Notification {
	note := Notification{
		Location:    lc.Location,
		Probability: probability,
		Visits:      lc.Visits,
	}
	if probability >= n.opts.Threshold {
		note.Kind = KindProbable
		note.Message = fmt.Sprintf("Probable purchase at %s (%.2f%% of your history).", lc.Location, probability)
		return note
	}
	note.Kind = KindRepeat
	if lc.Visits == 1 {
		note.Message = fmt.Sprintf("You've recently purchased from %s. Wanna try again?", lc.Location)
	} else {
		note.Message = fmt.Sprintf("You've purchased from %s %d times. Wanna try again?", lc.Location, lc.Visits)
	}
	return note
}
