package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/tachyon/internal/llm"
	"github.com/Veraticus/tachyon/internal/model"
	"github.com/Veraticus/tachyon/internal/service"
	"github.com/shopspring/decimal"
)

// LocationProbabilityName is the tool name exposed to the oracle.
const LocationProbabilityName = "location_probability"

// LocationProbability estimates how likely a user's purchase came from a
// location, based on the share of their history recorded there.
type LocationProbability struct {
	counter service.RecordCounter
	logger  *slog.Logger
}

// NewLocationProbability creates the tool over counter.
func NewLocationProbability(counter service.RecordCounter, logger *slog.Logger) *LocationProbability {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocationProbability{counter: counter, logger: logger}
}

// NoDataMessage is reported when a user has no history at all.
func NoDataMessage(uid string) string {
	return fmt.Sprintf("No documents found for user '%s'. Cannot calculate probability.", uid)
}

// ProbabilityMessage renders a computed percentage.
func ProbabilityMessage(uid, location string, percentage decimal.Decimal) string {
	return fmt.Sprintf("Based on their history, the probability of a document from user '%s' being from '%s' is %s%%.",
		uid, location, percentage.StringFixed(2))
}

// Percentage returns matching/total*100 rounded half-to-even to two places.
// total must be positive.
func Percentage(matching, total int64) decimal.Decimal {
	return decimal.NewFromInt(matching).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(total)).
		RoundBank(2)
}

// Calculate counts uid's records and the subset at location. A user with
// no records yields a NoData result, not an error. Store failures are
// returned unchanged and are not retried.
func (t *LocationProbability) Calculate(ctx context.Context, uid, location string) (model.ProbabilityResult, error) {
	uid = strings.TrimSpace(uid)
	location = strings.TrimSpace(location)
	if uid == "" {
		return model.ProbabilityResult{}, fmt.Errorf("%w: uid is required", ErrInvalidArgument)
	}
	if location == "" {
		return model.ProbabilityResult{}, fmt.Errorf("%w: location is required", ErrInvalidArgument)
	}

	total, err := t.counter.CountUserRecords(ctx, uid)
	if err != nil {
		return model.ProbabilityResult{}, fmt.Errorf("count records for %s: %w", uid, err)
	}
	if total == 0 {
		t.logger.Info("no history for user", "uid", uid)
		return model.ProbabilityResult{
			Source:  model.SourcePersonal,
			NoData:  true,
			Summary: NoDataMessage(uid),
		}, nil
	}

	matching, err := t.counter.CountUserRecordsAt(ctx, uid, location)
	if err != nil {
		return model.ProbabilityResult{}, fmt.Errorf("count records for %s at %s: %w", uid, location, err)
	}

	percentage := Percentage(matching, total)
	t.logger.Debug("location probability",
		"uid", uid,
		"location", location,
		"matching", matching,
		"total", total,
		"percentage", percentage.StringFixed(2))

	return model.ProbabilityResult{
		Source:   model.SourcePersonal,
		Value:    percentage.InexactFloat64(),
		Summary:  ProbabilityMessage(uid, location, percentage),
		Evidence: []string{fmt.Sprintf("%d of %d records mention %s", matching, total, location)},
	}, nil
}

// Definition describes the tool to the oracle.
func (t *LocationProbability) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        LocationProbabilityName,
		Description: "Calculates the probability that a purchase by the user was made at the given location, from the share of the user's past receipts recorded there.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"uid":      stringSchema("The user id whose purchase history is examined."),
				"location": stringSchema("The location to test, matched as a case-insensitive substring of each receipt's geo information."),
			},
			"required": []string{"uid", "location"},
		},
	}
}

// Invoke runs Calculate with oracle-supplied arguments.
func (t *LocationProbability) Invoke(ctx context.Context, args json.RawMessage) (Result, error) {
	var in struct {
		UID      string `json:"uid"`
		Location string `json:"location"`
	}
	if err := decodeArgs(args, &in, map[string]*string{"uid": &in.UID, "location": &in.Location}); err != nil {
		return Result{}, err
	}

	result, err := t.Calculate(ctx, in.UID, in.Location)
	if err != nil {
		return Result{}, err
	}
	return Result{Content: result.Summary}, nil
}
