package provider

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/johnstarich/banklink/pipe"
	"github.com/johnstarich/banklink/plaindb"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a provider or journal does not exist
var ErrNotFound = errors.New("Not found")

// Store reads and writes providers and journals
type Store struct {
	mu        sync.Mutex
	providers plaindb.Bucket
	journals  plaindb.Bucket
	now       func() time.Time
}

// NewStore loads the providers and journals buckets from db
func NewStore(db plaindb.DB) (*Store, error) {
	store := &Store{now: time.Now}
	return store, pipe.OpFuncs{
		func() error {
			var err error
			store.providers, err = db.Bucket("providers", "1", &providerUpgrader{})
			return err
		},
		func() error {
			var err error
			store.journals, err = db.Bucket("journals", "1", &journalUpgrader{})
			return err
		},
	}.Do()
}

type providerUpgrader struct{}

func (u *providerUpgrader) Parse(dataVersion, id string, data json.RawMessage) (interface{}, error) {
	switch dataVersion {
	case "", "1":
		var p Provider
		err := json.Unmarshal(data, &p)
		return p, err
	default:
		return nil, errors.Errorf("Unknown provider version: %s", dataVersion)
	}
}

func (u *providerUpgrader) Upgrade(dataVersion, id string, data interface{}) (string, interface{}, error) {
	switch dataVersion {
	case "":
		return "1", data, nil
	default:
		return "", nil, errors.Errorf("Unknown provider version: %s", dataVersion)
	}
}

type journalUpgrader struct{}

func (u *journalUpgrader) Parse(dataVersion, id string, data json.RawMessage) (interface{}, error) {
	switch dataVersion {
	case "", "1":
		var j Journal
		err := json.Unmarshal(data, &j)
		return j, err
	default:
		return nil, errors.Errorf("Unknown journal version: %s", dataVersion)
	}
}

func (u *journalUpgrader) Upgrade(dataVersion, id string, data interface{}) (string, interface{}, error) {
	switch dataVersion {
	case "":
		return "1", data, nil
	default:
		return "", nil, errors.Errorf("Unknown journal version: %s", dataVersion)
	}
}

// Provider returns the provider with 'id'
func (s *Store) Provider(id string) (Provider, error) {
	var p Provider
	found, err := s.providers.Get(id, &p)
	if err != nil {
		return p, err
	}
	if !found {
		return p, errors.Wrapf(ErrNotFound, "Provider %q", id)
	}
	return p, nil
}

// Providers returns all providers, sorted by ID
func (s *Store) Providers() ([]Provider, error) {
	var providers []Provider
	var p Provider
	err := s.providers.Iter(&p, func(string) bool {
		providers = append(providers, p)
		return true
	})
	return providers, err
}

// PutProvider creates or replaces a provider
func (s *Store) PutProvider(p Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putProvider(p)
}

func (s *Store) putProvider(p Provider) error {
	if p.ID == "" {
		return errors.New("Provider ID is required")
	}
	if !p.Service.Valid() {
		return errors.Errorf("Unsupported service: %q", p.Service)
	}
	return s.providers.Put(p.ID, p)
}

// DeleteProvider removes the provider with 'id'
func (s *Store) DeleteProvider(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.providers.Delete(id)
}

// UpdateProvider runs update on the provider with 'id' and saves the result. Updates are serialized.
func (s *Store) UpdateProvider(id string, update func(*Provider) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.Provider(id)
	if err != nil {
		return err
	}
	if err := update(&p); err != nil {
		return err
	}
	p.ID = id
	return s.putProvider(p)
}

// PostMessage appends a message to the provider with 'id'
func (s *Store) PostMessage(id, text string) error {
	return s.UpdateProvider(id, func(p *Provider) error {
		p.Post(s.now(), text)
		return nil
	})
}

// FindByRequisitionRef returns the provider of 'service' whose latest requisition has reference 'ref'
func (s *Store) FindByRequisitionRef(service Service, ref string) (Provider, bool, error) {
	var match Provider
	found := false
	if ref == "" {
		return match, false, nil
	}
	var p Provider
	err := s.providers.Iter(&p, func(string) bool {
		if p.Service == service && p.RequisitionRef() == ref {
			match = p
			found = true
			return false
		}
		return true
	})
	return match, found, err
}

// ProvidersForJournal returns the providers of 'service' feeding the journal with 'journalID'
func (s *Store) ProvidersForJournal(service Service, journalID string) ([]Provider, error) {
	var providers []Provider
	var p Provider
	err := s.providers.Iter(&p, func(string) bool {
		if p.Service == service && p.JournalID == journalID {
			providers = append(providers, p)
		}
		return true
	})
	return providers, err
}

// Journal returns the journal with 'id'
func (s *Store) Journal(id string) (Journal, error) {
	var j Journal
	found, err := s.journals.Get(id, &j)
	if err != nil {
		return j, err
	}
	if !found {
		return j, errors.Wrapf(ErrNotFound, "Journal %q", id)
	}
	return j, nil
}

// Journals returns all journals, sorted by name
func (s *Store) Journals() ([]Journal, error) {
	var journals []Journal
	var j Journal
	err := s.journals.Iter(&j, func(string) bool {
		journals = append(journals, j)
		return true
	})
	sort.SliceStable(journals, func(a, b int) bool {
		return journals[a].DisplayName() < journals[b].DisplayName()
	})
	return journals, err
}

// PutJournal creates or replaces a journal
func (s *Store) PutJournal(j Journal) error {
	if j.ID == "" {
		return errors.New("Journal ID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.journals.Put(j.ID, j)
}

// UpdateJournal runs update on the journal with 'id' and saves the result. Updates are serialized.
func (s *Store) UpdateJournal(id string, update func(*Journal) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.Journal(id)
	if err != nil {
		return err
	}
	if err := update(&j); err != nil {
		return err
	}
	j.ID = id
	return s.journals.Put(id, j)
}

// ProviderJournal returns the journal fed by p
func (s *Store) ProviderJournal(p Provider) (Journal, error) {
	if p.JournalID == "" {
		return Journal{}, errors.Errorf("Provider %q has no journal", p.ID)
	}
	return s.Journal(p.JournalID)
}

// SetGoCardlessInstitution stores the selected GoCardless institution on the provider with 'id'
func (s *Store) SetGoCardlessInstitution(id, institutionID string) error {
	return s.UpdateProvider(id, func(p *Provider) error {
		p.GoCardlessInstitutionID = institutionID
		return nil
	})
}

// SetNordigenInstitution stores the selected Nordigen institution on the journal with 'id'
func (s *Store) SetNordigenInstitution(id, institutionID string) error {
	return s.UpdateJournal(id, func(j *Journal) error {
		j.NordigenInstitutionID = institutionID
		return nil
	})
}
