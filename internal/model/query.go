package model

// Transcription is the oracle's reading of a spoken query.
type Transcription struct {
	Language      string `json:"language"`
	Transcription string `json:"transcription"`
	Translation   string `json:"translation"`
}

// HistoryEntry is one purchase in the history the query pipeline searches.
type HistoryEntry struct {
	DocumentID string          `json:"documentId"`
	Metadata   HistoryMetadata `json:"metadata"`
	Item       HistoryItem     `json:"item"`
}

// HistoryMetadata describes the receipt a history entry came from.
type HistoryMetadata struct {
	AdditionalInfo map[string]string `json:"additionalInfo"`
	DocumentID     string            `json:"documentId"`
	Username       string            `json:"username"`
	Timestamp      string            `json:"timestamp"`
	GSTNumber      string            `json:"gstNumber"`
	Tags           []string          `json:"tags"`
}

// HistoryItem is the purchased item of a history entry.
type HistoryItem struct {
	DocumentID string  `json:"document_id"`
	ItemName   string  `json:"item_name"`
	ItemType   string  `json:"item_type"`
	Validity   string  `json:"validity"`
	Quantity   int     `json:"quantity"`
	Price      float64 `json:"price"`
}

// QueryResult is what one run of the query pipeline produced.
type QueryResult struct {
	Language string `json:"language"`
	Query    string `json:"query"`
	Search   string `json:"search"`
	Summary  string `json:"summary"`
	Answer   string `json:"answer"`
}
