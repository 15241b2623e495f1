package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Veraticus/tachyon/internal/common"
)

var (
	fencePattern   = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)\\n?\\s*```")
	percentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
)

// StripCodeFence removes a surrounding markdown code fence, returning the
// trimmed content between the fences. Text without a fence is returned trimmed.
func StripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if m := fencePattern.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return content
}

// extractObject returns the outermost {...} span, if any.
func extractObject(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return content
	}
	return content[start : end+1]
}

// ParseJSON decodes content into v. A direct decode is tried first, then the
// content is retried with markdown fences and surrounding prose removed.
func ParseJSON(content string, v any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return common.ErrOracleEmpty
	}

	firstErr := json.Unmarshal([]byte(trimmed), v)
	if firstErr == nil {
		return nil
	}

	cleaned := extractObject(StripCodeFence(trimmed))
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("%w: %w", common.ErrOracleResponse, err)
	}
	return nil
}

// ParsePercentage returns the first "NN.NN%" figure in free text.
func ParsePercentage(content string) (float64, bool) {
	m := percentPattern.FindStringSubmatch(content)
	if m == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
