// Package model holds the data types shared by the stores, tools, and pipelines.
package model

import (
	"encoding/json"
	"time"
)

// ExpenseRecord is one historical purchase entry for a user.
// GeoInfo is free text, usually a JSON object such as {"location": "..."}.
type ExpenseRecord struct {
	CreatedAt time.Time      `json:"createdAt"`
	Fields    map[string]any `json:"fields,omitempty"`
	ID        string         `json:"id"`
	UserID    string         `json:"uid"`
	GeoInfo   string         `json:"geoInfo"`
}

// GeoInfoFromLocation encodes a plain location the way receipts store it.
func GeoInfoFromLocation(location string) string {
	encoded, err := json.Marshal(map[string]string{"location": location})
	if err != nil {
		return location
	}
	return string(encoded)
}

// Location extracts the "location" member of a JSON geo field, falling back
// to the raw text when the field is not JSON.
func (r ExpenseRecord) Location() string {
	var geo struct {
		Location string `json:"location"`
	}
	if err := json.Unmarshal([]byte(r.GeoInfo), &geo); err != nil || geo.Location == "" {
		return r.GeoInfo
	}
	return geo.Location
}
