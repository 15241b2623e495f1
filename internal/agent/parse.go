package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Veraticus/tachyon/internal/common"
	"github.com/Veraticus/tachyon/internal/llm"
	"github.com/Veraticus/tachyon/internal/model"
)

// noDataPhrases mark a reply that relays a tool's "nothing to go on" text.
var noDataPhrases = []string{
	"no documents found",
	"no document found",
	"cannot calculate probability",
	"no history",
}

// ParseProbability reads a branch reply. It accepts
// {"probability": <0-100 or null>, "evidence": [...], "summary": "..."},
// fenced or wrapped in prose, and falls back to the first percentage
// figure in free text. A null probability, or a reply relaying a no-data
// tool message, means the branch had no data.
func ParseProbability(source model.ProbabilitySource, text string) (model.ProbabilityResult, error) {
	result := model.ProbabilityResult{Source: source}

	var reply struct {
		Probability json.RawMessage `json:"probability"`
		Summary     string          `json:"summary"`
		Evidence    []string        `json:"evidence"`
		NoData      bool            `json:"no_data"`
	}
	if err := llm.ParseJSON(text, &reply); err == nil && (reply.Probability != nil || reply.NoData || reply.Summary != "") {
		result.Summary = reply.Summary
		result.Evidence = reply.Evidence
		if reply.NoData || string(reply.Probability) == "null" {
			result.NoData = true
			return result, nil
		}
		if reply.Probability != nil {
			var value float64
			if err := json.Unmarshal(reply.Probability, &value); err != nil {
				return result, fmt.Errorf("%w: probability %s is not a number", common.ErrOracleResponse, reply.Probability)
			}
			return withValue(result, value)
		}
		return fromText(result, reply.Summary)
	}

	if strings.TrimSpace(text) == "" {
		return result, common.ErrOracleEmpty
	}
	result.Summary = strings.TrimSpace(text)
	return fromText(result, text)
}

// fromText reads a percentage or a no-data statement from prose.
func fromText(result model.ProbabilityResult, text string) (model.ProbabilityResult, error) {
	if value, ok := llm.ParsePercentage(text); ok {
		return withValue(result, value)
	}
	lower := strings.ToLower(text)
	for _, phrase := range noDataPhrases {
		if strings.Contains(lower, phrase) {
			result.NoData = true
			return result, nil
		}
	}
	return result, fmt.Errorf("%w: no probability in reply", common.ErrOracleResponse)
}

func withValue(result model.ProbabilityResult, value float64) (model.ProbabilityResult, error) {
	if value < 0 || value > 100 {
		return result, fmt.Errorf("%w: probability %.2f outside 0-100", common.ErrOracleResponse, value)
	}
	result.Value = value
	return result, nil
}

// ParseDecision reads {"verdict": "yes"|"no", "rationale": "..."}. Replies
// that are not JSON are accepted when they start with yes or no.
func ParseDecision(text string) (model.Decision, error) {
	var reply struct {
		Verdict   any      `json:"verdict"`
		Score     *float64 `json:"score"`
		Rationale string   `json:"rationale"`
	}
	if err := llm.ParseJSON(text, &reply); err == nil && reply.Verdict != nil {
		verdict, ok := parseVerdict(reply.Verdict)
		if !ok {
			return model.Decision{}, fmt.Errorf("%w: verdict %v is not yes or no", common.ErrOracleResponse, reply.Verdict)
		}
		return model.Decision{Verdict: verdict, Rationale: reply.Rationale, Score: reply.Score}, nil
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return model.Decision{}, common.ErrOracleEmpty
	}
	first := strings.ToLower(strings.Trim(strings.Fields(trimmed)[0], ".,:;!*\"'"))
	if verdict, ok := parseVerdict(first); ok {
		return model.Decision{Verdict: verdict, Rationale: trimmed}, nil
	}
	return model.Decision{}, fmt.Errorf("%w: no yes/no verdict in reply", common.ErrOracleResponse)
}

func parseVerdict(v any) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "yes", "true", "y":
			return true, true
		case "no", "false", "n":
			return false, true
		}
	}
	return false, false
}
