package selector

import (
	"encoding/json"
	"strconv"

	"github.com/johnstarich/banklink/institution"
)

// Context is the construction payload for a Widget
type Context struct {
	Institutions []institution.Institution
	Countries    []institution.Country
	// Country is the default country. May be empty or absent from Countries.
	Country string
	// RecordID identifies the record receiving the institution ID
	RecordID string
	// ScopeIDs identify the records the agreement call runs for
	ScopeIDs []string
}

// contextJSON is the action context wire format. Provider-backed selectors send provider_id and active_id, journal-backed selectors send journal_id and active_ids.
type contextJSON struct {
	Institutions []institution.Institution `json:"institutions"`
	CountryNames []institution.Country     `json:"country_names"`
	Country      string                    `json:"country"`
	ProviderID   json.RawMessage           `json:"provider_id,omitempty"`
	JournalID    json.RawMessage           `json:"journal_id,omitempty"`
	ActiveID     json.RawMessage           `json:"active_id,omitempty"`
	ActiveIDs    []json.RawMessage         `json:"active_ids,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler
func (c *Context) UnmarshalJSON(b []byte) error {
	var raw contextJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	c.Institutions = raw.Institutions
	c.Countries = raw.CountryNames
	c.Country = raw.Country
	var err error
	if len(raw.ProviderID) > 0 {
		c.RecordID, err = rawID(raw.ProviderID)
	} else if len(raw.JournalID) > 0 {
		c.RecordID, err = rawID(raw.JournalID)
	}
	if err != nil {
		return err
	}
	c.ScopeIDs = nil
	if len(raw.ActiveID) > 0 {
		id, err := rawID(raw.ActiveID)
		if err != nil {
			return err
		}
		c.ScopeIDs = append(c.ScopeIDs, id)
	}
	for _, rawActive := range raw.ActiveIDs {
		id, err := rawID(rawActive)
		if err != nil {
			return err
		}
		c.ScopeIDs = append(c.ScopeIDs, id)
	}
	return nil
}

// MarshalJSON implements json.Marshaler, using the provider_id / active_id keys
func (c Context) MarshalJSON() ([]byte, error) {
	raw := struct {
		Institutions []institution.Institution `json:"institutions"`
		CountryNames []institution.Country     `json:"country_names"`
		Country      string                    `json:"country"`
		ProviderID   string                    `json:"provider_id"`
		ActiveIDs    []string                  `json:"active_ids"`
	}{
		Institutions: c.Institutions,
		CountryNames: c.Countries,
		Country:      c.Country,
		ProviderID:   c.RecordID,
		ActiveIDs:    c.ScopeIDs,
	}
	if raw.Institutions == nil {
		raw.Institutions = []institution.Institution{}
	}
	if raw.CountryNames == nil {
		raw.CountryNames = []institution.Country{}
	}
	return json.Marshal(raw)
}

// rawID accepts both string and numeric record IDs
func rawID(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return "", err
	}
	return n.String(), nil
}
