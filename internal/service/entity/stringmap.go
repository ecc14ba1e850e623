package entity

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"conversation-analytics-service/internal/models"
)

const wordTrim = " ,?."

type mapEntry struct {
	Type     string
	Original string
}

// StringMap is a fixed term-to-type lookup used when no custom recognizer
// is available. Terms match whole words case-insensitively.
type StringMap struct {
	terms map[string]mapEntry
}

// LoadStringMap reads a CSV with "Text" and "Type" header columns. The first
// occurrence of a term wins.
func LoadStringMap(r io.Reader) (*StringMap, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("entity: read string map header: %w", err)
	}
	textCol, typeCol := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case "Text":
			textCol = i
		case "Type":
			typeCol = i
		}
	}
	if textCol < 0 || typeCol < 0 {
		return nil, errors.New("entity: string map needs Text and Type columns")
	}

	m := &StringMap{terms: make(map[string]mapEntry)}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("entity: read string map: %w", err)
		}
		if textCol >= len(row) || typeCol >= len(row) {
			continue
		}
		original := strings.TrimSpace(row[textCol])
		key := strings.ToLower(original)
		if key == "" {
			continue
		}
		if _, ok := m.terms[key]; !ok {
			m.terms[key] = mapEntry{Type: strings.TrimSpace(row[typeCol]), Original: original}
		}
	}
	return m, nil
}

// Len returns the number of distinct terms.
func (m *StringMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.terms)
}

// StringMapKey returns the language-specific object key for a configured map
// file: "entities.csv" becomes "entities-en.csv" for language "en".
func StringMapKey(base, language string) string {
	if language == "" {
		return base
	}
	return strings.TrimSuffix(base, ".csv") + "-" + language + ".csv"
}

// Apply tags every word matching a term with a score 1.0 entity and records
// each matched term once in the aggregator. Terms are applied in the order
// they first occur in the conversation. It returns the number of tagged words.
func (m *StringMap) Apply(turns []*models.SpeechSegment, agg *Aggregator) int {
	if m.Len() == 0 {
		return 0
	}

	var matched []string
	seen := make(map[string]bool)
	for _, turn := range turns {
		for _, w := range turn.Words {
			term := normalize(w.Text)
			if _, ok := m.terms[term]; ok && !seen[term] {
				seen[term] = true
				matched = append(matched, term)
			}
		}
	}

	tagged := 0
	for _, term := range matched {
		entry := m.terms[term]
		agg.Record(entry.Type, entry.Original)

		for _, turn := range turns {
			offset := 0
			for _, w := range turn.Words {
				if normalize(w.Text) == term {
					text := strings.Trim(w.Text, wordTrim)
					begin := offset + utf8.RuneCountInString(w.Text[:strings.Index(w.Text, text)])
					turn.Entities = append(turn.Entities, models.Entity{
						Type:        entry.Type,
						Text:        text,
						BeginOffset: begin,
						EndOffset:   begin + utf8.RuneCountInString(text),
						Score:       1.0,
					})
					tagged++
				}
				offset += utf8.RuneCountInString(w.Text)
			}
		}
	}
	return tagged
}

func normalize(text string) string {
	return strings.ToLower(strings.Trim(text, wordTrim))
}
