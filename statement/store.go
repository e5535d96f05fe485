package statement

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/johnstarich/banklink/plaindb"
	"github.com/pkg/errors"
)

// Store keeps the statement lines of each journal
type Store struct {
	mu     sync.Mutex
	bucket plaindb.Bucket
}

// journalLines is the stored value for a single journal
type journalLines struct {
	NextID int
	Lines  []Line
}

// NewStore loads the statements bucket from db
func NewStore(db plaindb.DB) (*Store, error) {
	bucket, err := db.Bucket("statements", "1", &linesUpgrader{})
	if err != nil {
		return nil, err
	}
	return &Store{bucket: bucket}, nil
}

type linesUpgrader struct{}

func (u *linesUpgrader) Parse(dataVersion, id string, data json.RawMessage) (interface{}, error) {
	switch dataVersion {
	case "", "1":
		var lines journalLines
		err := json.Unmarshal(data, &lines)
		return lines, err
	default:
		return nil, errors.Errorf("Unknown statement version: %s", dataVersion)
	}
}

func (u *linesUpgrader) Upgrade(dataVersion, id string, data interface{}) (string, interface{}, error) {
	switch dataVersion {
	case "":
		return "1", data, nil
	default:
		return "", nil, errors.Errorf("Unknown statement version: %s", dataVersion)
	}
}

// Add appends lines to the journal's statement, skipping any whose unique import ID is already present.
// Returns the number of lines added.
func (s *Store) Add(journalID string, lines []Line) (int, error) {
	if journalID == "" {
		return 0, errors.New("Journal ID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var stored journalLines
	if _, err := s.bucket.Get(journalID, &stored); err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(stored.Lines))
	for _, line := range stored.Lines {
		if line.UniqueImportID != "" {
			seen[line.UniqueImportID] = true
		}
	}

	added := 0
	for _, line := range lines {
		if line.UniqueImportID != "" {
			if seen[line.UniqueImportID] {
				continue
			}
			seen[line.UniqueImportID] = true
		}
		stored.NextID++
		line.ID = fmt.Sprintf("%s-%d", journalID, stored.NextID)
		line.JournalID = journalID
		stored.Lines = append(stored.Lines, line)
		added++
	}
	if added == 0 {
		return 0, nil
	}
	sort.SliceStable(stored.Lines, func(a, b int) bool {
		return stored.Lines[a].Date.Before(stored.Lines[b].Date)
	})
	return added, s.bucket.Put(journalID, stored)
}

// Lines returns the journal's statement lines, oldest first
func (s *Store) Lines(journalID string) ([]Line, error) {
	var stored journalLines
	_, err := s.bucket.Get(journalID, &stored)
	return stored.Lines, err
}

// Line returns the line with 'id' in the journal's statement
func (s *Store) Line(journalID, id string) (Line, bool, error) {
	lines, err := s.Lines(journalID)
	if err != nil {
		return Line{}, false, err
	}
	for _, line := range lines {
		if line.ID == id {
			return line, true, nil
		}
	}
	return Line{}, false, nil
}
