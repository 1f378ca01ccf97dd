package repository

import (
	"encoding/json"
	"reflect"
)

// Metadata holds versioning info for optimistic locking.
type Metadata struct {
	LastUpdate int64 `json:"lastUpdate"` // Unix timestamp in milliseconds
}

// DataDocument is the serialized form of a record collection.
type DataDocument struct {
	Metadata Metadata `json:"metadata"`
	Records  []Record `json:"records" validate:"unique=ID,dive"`
}

// Record is a single entry identified by ID with free-form fields.
type Record struct {
	ID     string         `json:"id" validate:"required"`
	Fields map[string]any `json:"fields"`
}

// ApplyDefaults sets fallback values after decode.
func (d *DataDocument) ApplyDefaults() {
	if d.Records == nil {
		d.Records = []Record{}
	}
	for i := range d.Records {
		d.Records[i].applyDefaults()
	}
}

func (r *Record) applyDefaults() {
	if r.Fields == nil {
		r.Fields = map[string]any{}
	}
}

// Find returns the index of the record with the given id, or -1.
func (d *DataDocument) Find(id string) int {
	for i := range d.Records {
		if d.Records[i].ID == id {
			return i
		}
	}
	return -1
}

// AreDataDocumentsEqual compares two DataDocuments ignoring Metadata.
// Uses JSON serialization so numeric field types decoded differently still compare equal.
func AreDataDocumentsEqual(a, b *DataDocument) bool {
	if a == nil || b == nil {
		return a == b
	}

	aBytes, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bBytes, err := json.Marshal(b)
	if err != nil {
		return false
	}

	var aMap, bMap map[string]interface{}
	if err := json.Unmarshal(aBytes, &aMap); err != nil {
		return false
	}
	if err := json.Unmarshal(bBytes, &bMap); err != nil {
		return false
	}

	delete(aMap, "metadata")
	delete(bMap, "metadata")

	return reflect.DeepEqual(aMap, bMap)
}
