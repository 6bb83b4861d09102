package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/WessleyAI/patent-search/pkg/fn"
)

// EnglishLang is the language tag selected during extraction.
const EnglishLang = "EN"

// ParsePatent decodes one patent JSON document.
func ParsePatent(data []byte) (PatentRecord, error) {
	var rec PatentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return PatentRecord{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return rec, nil
}

// English extracts identifying fields and the English title, abstract,
// description and claims. A missing English entry yields "". When the record
// has no patent number, fallbackNumber is used.
func (r PatentRecord) English(fallbackNumber string) Fields {
	number := r.PatentNumber.String()
	if number == "" {
		number = fallbackNumber
	}
	return Fields{
		PatentNumber:    number,
		PublicationID:   r.PublicationID.String(),
		FamilyID:        r.FamilyID.String(),
		PublicationDate: r.PublicationDate.String(),
		Title:           firstEnglish(r.Titles, func(e LangEntry) string { return e.Text }),
		Abstract:        firstEnglish(r.Abstracts, func(e LangEntry) string { return e.ParagraphMarkup }),
		Description:     firstEnglish(r.Descriptions, func(e LangEntry) string { return e.ParagraphMarkup }),
		ClaimsText:      englishClaims(r.Claims),
	}
}

// CombinedText is the text that gets chunked and embedded.
func (f Fields) CombinedText() string {
	return strings.TrimSpace(f.Abstract + " " + f.ClaimsText)
}

func isEnglish(lang string) bool {
	return strings.EqualFold(strings.TrimSpace(lang), EnglishLang)
}

func firstEnglish(entries []LangEntry, value func(LangEntry) string) string {
	for _, e := range entries {
		if isEnglish(e.Lang) {
			return value(e)
		}
	}
	return ""
}

// englishClaims joins the English claims of the first claim group.
func englishClaims(groups []ClaimGroup) string {
	if len(groups) == 0 {
		return ""
	}
	texts := fn.FilterMap(groups[0].Claims, func(c LangEntry) (string, bool) {
		return c.ParagraphMarkup, isEnglish(c.Lang)
	})
	return strings.Join(texts, " ")
}
