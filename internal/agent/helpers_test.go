package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Veraticus/tachyon/internal/common"
	"github.com/Veraticus/tachyon/internal/llm"
	"github.com/Veraticus/tachyon/internal/model"
)

type fakeCounter struct {
	records map[string][]string
}

func (f *fakeCounter) CountUserRecords(_ context.Context, uid string) (int64, error) {
	return int64(len(f.records[uid])), nil
}

func (f *fakeCounter) CountUserRecordsAt(_ context.Context, uid, location string) (int64, error) {
	var n int64
	for _, geo := range f.records[uid] {
		if strings.Contains(strings.ToLower(geo), strings.ToLower(location)) {
			n++
		}
	}
	return n, nil
}

type fakeReader struct {
	docs map[string]map[string]any
}

func (f *fakeReader) GetDocument(_ context.Context, collection, id string) (*model.Document, error) {
	data, ok := f.docs[collection+"/"+id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &model.Document{Collection: collection, ID: id, Data: data}, nil
}

func toolCall(name string, args any) llm.Response {
	raw, _ := json.Marshal(args)
	return llm.Response{ToolCalls: []llm.ToolCall{{ID: name + "-1", Name: name, Arguments: raw}}}
}

// lastToolResult returns the first tool result in the newest message, if any.
func lastToolResult(req llm.Request) *llm.ToolResult {
	if len(req.Messages) == 0 {
		return nil
	}
	for _, part := range req.Messages[len(req.Messages)-1].Parts {
		if part.ToolResult != nil {
			return part.ToolResult
		}
	}
	return nil
}

func promptText(req llm.Request) string {
	if len(req.Messages) == 0 || len(req.Messages[0].Parts) == 0 {
		return ""
	}
	return req.Messages[0].Parts[0].Text
}
