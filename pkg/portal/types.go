package portal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	errs "compassync/pkg/errors"
)

// PersonRecord is a normalized directory entry. Immutable once read; only
// entries with a non-empty photo version token are ever materialized.
type PersonRecord struct {
	Name        string
	DisplayCode string
	// PhotoToken is the opaque service-issued photo version token. It embeds
	// a freshness timestamp and changes whenever the photo is replaced.
	PhotoToken string
}

// rawPerson tolerates the schema drift between the staff and student
// payloads. Alias priority per field: name n > name; code displayCode >
// code; token pv > photoUrl > photo.
type rawPerson struct {
	N           string `json:"n"`
	AltName     string `json:"name"`
	DisplayCode string `json:"displayCode"`
	Code        string `json:"code"`
	PV          string `json:"pv"`
	PhotoURL    string `json:"photoUrl"`
	Photo       string `json:"photo"`
}

// normalize resolves the field aliases into a PersonRecord. Entries without
// a photo token are dropped here, never later.
func (r rawPerson) normalize() (PersonRecord, bool) {
	token := strings.TrimSpace(firstNonEmpty(r.PV, r.PhotoURL, r.Photo))
	if token == "" {
		return PersonRecord{}, false
	}

	name := firstNonEmpty(r.N, r.AltName)
	if name == "" {
		name = "Unknown"
	}
	code := firstNonEmpty(r.DisplayCode, r.Code)
	if code == "" {
		code = "UNKNOWN"
	}

	return PersonRecord{
		Name:        name,
		DisplayCode: code,
		PhotoToken:  token,
	}, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// decodePeople parses a directory response body into raw entries. The
// payload is one of three shapes: an envelope with the list under "d", a
// bare list, or a single record.
func decodePeople(data []byte) ([]rawPerson, error) {
	var envelope struct {
		D json.RawMessage `json:"d"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && len(envelope.D) > 0 && string(envelope.D) != "null" {
		data = envelope.D
	}

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []rawPerson
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, &errs.Error{
				Type:    errs.ErrorTypeParsing,
				Message: fmt.Sprintf("failed to parse directory list: %v", err),
			}
		}
		return list, nil
	}

	var single rawPerson
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse directory entry: %v", err),
		}
	}
	return []rawPerson{single}, nil
}

// normalizePeople converts raw entries into PersonRecords, dropping
// empty-token entries
func normalizePeople(raw []rawPerson) []PersonRecord {
	people := make([]PersonRecord, 0, len(raw))
	for _, r := range raw {
		if person, ok := r.normalize(); ok {
			people = append(people, person)
		}
	}
	return people
}
