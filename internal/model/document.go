package model

// Document is a single record read from a document database.
type Document struct {
	Data       map[string]any `json:"data"`
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
}
