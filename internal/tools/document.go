package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/tachyon/internal/common"
	"github.com/Veraticus/tachyon/internal/llm"
	"github.com/Veraticus/tachyon/internal/model"
	"github.com/Veraticus/tachyon/internal/service"
)

// ReadDocumentName is the tool name exposed to the oracle.
const ReadDocumentName = "read_document"

// DocumentReader fetches a document by collection and id for the oracle.
type DocumentReader struct {
	reader service.DocumentReader
	logger *slog.Logger
}

// NewDocumentReader creates the tool over reader.
func NewDocumentReader(reader service.DocumentReader, logger *slog.Logger) *DocumentReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentReader{reader: reader, logger: logger}
}

// Read returns the document, common.ErrNotFound when it is absent, or the
// store error.
func (t *DocumentReader) Read(ctx context.Context, collection, id string) (*model.Document, error) {
	collection = strings.TrimSpace(collection)
	id = strings.TrimSpace(id)
	if collection == "" {
		return nil, fmt.Errorf("%w: collection is required", ErrInvalidArgument)
	}
	if id == "" {
		return nil, fmt.Errorf("%w: document_id is required", ErrInvalidArgument)
	}
	return t.reader.GetDocument(ctx, collection, id)
}

// FoundMessage renders a successful read.
func FoundMessage(doc *model.Document) string {
	data, err := json.Marshal(doc.Data)
	if err != nil {
		data = []byte(fmt.Sprint(doc.Data))
	}
	return fmt.Sprintf("Success: Found document. Data: %s", data)
}

// NotFoundMessage renders a missing document.
func NotFoundMessage(collection, id string) string {
	return fmt.Sprintf("Error: No document found with ID '%s' in collection '%s'.", id, collection)
}

// Definition describes the tool to the oracle.
func (t *DocumentReader) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        ReadDocumentName,
		Description: "Reads a single document from the document database and returns its fields.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"collection":  stringSchema("The name of the collection holding the document."),
				"document_id": stringSchema("The id of the document to read."),
			},
			"required": []string{"collection", "document_id"},
		},
	}
}

// Invoke runs Read with oracle-supplied arguments. A missing document is a
// structured not-found result; any other failure is flagged as an error.
func (t *DocumentReader) Invoke(ctx context.Context, args json.RawMessage) (Result, error) {
	var in struct {
		Collection string `json:"collection"`
		DocumentID string `json:"document_id"`
	}
	if err := decodeArgs(args, &in, map[string]*string{"collection": &in.Collection, "document_id": &in.DocumentID}); err != nil {
		return Result{}, err
	}

	doc, err := t.Read(ctx, in.Collection, in.DocumentID)
	switch {
	case errors.Is(err, common.ErrNotFound):
		return Result{Content: NotFoundMessage(in.Collection, in.DocumentID), IsError: true}, nil
	case err != nil:
		t.logger.Warn("document read failed", "collection", in.Collection, "id", in.DocumentID, "error", err)
		return Result{Content: fmt.Sprintf("An unexpected error occurred: %v", err), IsError: true}, nil
	}
	return Result{Content: FoundMessage(doc)}, nil
}
