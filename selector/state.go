package selector

import "fmt"

// State is a step in the widget's lifecycle:
//
//	Idle -> CountrySelected <-> Filtered -> Submitting -> NavigatingAway | Failed
//	Failed -> CountrySelected | Filtered
type State int

const (
	// Idle has no country selected and renders no institutions
	Idle State = iota
	// CountrySelected renders the institutions of the selected country
	CountrySelected
	// Filtered additionally hides rows not matching the search text
	Filtered
	// Submitting is writing the selection and negotiating the agreement. No input is accepted.
	Submitting
	// NavigatingAway has replaced the page location with the agreement URL. Terminal.
	NavigatingAway
	// Failed means the write or agreement call failed or returned no URL. Retry returns to selection.
	Failed
)

var stateNames = map[State]string{
	Idle:            "Idle",
	CountrySelected: "CountrySelected",
	Filtered:        "Filtered",
	Submitting:      "Submitting",
	NavigatingAway:  "NavigatingAway",
	Failed:          "Failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// interactive returns true if the widget accepts country and search input in this state
func (s State) interactive() bool {
	switch s {
	case Idle, CountrySelected, Filtered, Failed:
		return true
	default:
		return false
	}
}
