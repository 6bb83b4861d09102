// Package domain defines the patent record read by ingestion, the English
// field extraction rules, and validation for user queries.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// LangEntry is one language-tagged value. Titles carry Text, abstracts,
// descriptions and claims carry ParagraphMarkup.
type LangEntry struct {
	Lang            string `json:"lang"`
	Text            string `json:"text,omitempty"`
	ParagraphMarkup string `json:"paragraph_markup,omitempty"`
}

// ClaimGroup is one element of the record's claims list.
type ClaimGroup struct {
	Claims []LangEntry `json:"claims"`
}

// PatentRecord is one patent JSON document as found in the input directory.
type PatentRecord struct {
	PatentNumber    Scalar       `json:"patent_number"`
	PublicationID   Scalar       `json:"publication_id"`
	FamilyID        Scalar       `json:"family_id"`
	PublicationDate Scalar       `json:"publication_date"`
	Titles          []LangEntry  `json:"titles"`
	Abstracts       []LangEntry  `json:"abstracts"`
	Descriptions    []LangEntry  `json:"descriptions"`
	Claims          []ClaimGroup `json:"claims"`
}

// Fields are the values extracted from a PatentRecord for storage.
type Fields struct {
	PatentNumber    string
	PublicationID   string
	FamilyID        string
	PublicationDate string
	Title           string
	Abstract        string
	Description     string
	ClaimsText      string
}

// Scalar is a JSON string or number decoded as text. Null decodes to "".
type Scalar string

// UnmarshalJSON implements json.Unmarshaler.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Scalar(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("domain: scalar %s: %w", data, err)
	}
	*s = Scalar(num.String())
	return nil
}

// String returns the text value.
func (s Scalar) String() string { return string(s) }

// FallbackPatentNumber names a record that has no patent_number.
func FallbackPatentNumber(fileIndex int) string {
	return "patent_" + strconv.Itoa(fileIndex)
}
