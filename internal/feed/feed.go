// Package feed keeps a per-tenant activity feed synchronized: an initial
// batch load plus live inserts delivered over pub/sub.
package feed

import (
	"context"
	"log"
	"sync"

	"leadlens/api/internal/store"
)

// Store is the subset of the data layer the synchronizer needs.
type Store interface {
	ListActivityLogs(ctx context.Context, tenantID string, limit int) ([]store.ActivityLogEntry, error)
	GetUserNames(ctx context.Context, tenantID string, userIDs []string) (map[string]string, error)
	GetLeadRefs(ctx context.Context, tenantID string, leadIDs []string) (map[string]store.LeadRef, error)
	GetUserName(ctx context.Context, tenantID, userID string) (string, error)
	GetLeadRef(ctx context.Context, tenantID, leadID string) (store.LeadRef, error)
}

// Source delivers live activity entries for a tenant.
type Source interface {
	Subscribe(ctx context.Context, tenantID string) (<-chan store.ActivityLogEntry, error)
}

// UnknownUser is shown when an actor's profile cannot be resolved.
const UnknownUser = "Unknown User"

// Entry is an activity row enriched with display data.
type Entry struct {
	store.ActivityLogEntry
	UserName    string `json:"userName"`
	LeadCompany string `json:"leadCompany,omitempty"`
	LeadContact string `json:"leadContact,omitempty"`
}

// Synchronizer maintains the enriched feed for one tenant.
type Synchronizer struct {
	store    Store
	source   Source
	tenantID string
	limit    int

	mu      sync.Mutex
	entries []Entry
	seen    map[string]bool
	active  bool
}

// NewSynchronizer creates a feed synchronizer capped at limit entries.
func NewSynchronizer(st Store, source Source, tenantID string, limit int) *Synchronizer {
	if limit <= 0 {
		limit = 50
	}
	return &Synchronizer{
		store:    st,
		source:   source,
		tenantID: tenantID,
		limit:    limit,
		seen:     make(map[string]bool),
	}
}

// Load fetches the current feed in two round trips: one query for the
// rows, one batched lookup per enrichment dimension.
func (s *Synchronizer) Load(ctx context.Context) ([]Entry, error) {
	rows, err := s.store.ListActivityLogs(ctx, s.tenantID, s.limit)
	if err != nil {
		return nil, err
	}

	userIDs := make([]string, 0, len(rows))
	leadIDs := make([]string, 0, len(rows))
	seenUsers := make(map[string]bool)
	seenLeads := make(map[string]bool)
	for _, row := range rows {
		if row.UserID != "" && !seenUsers[row.UserID] {
			seenUsers[row.UserID] = true
			userIDs = append(userIDs, row.UserID)
		}
		if row.LeadID != "" && !seenLeads[row.LeadID] {
			seenLeads[row.LeadID] = true
			leadIDs = append(leadIDs, row.LeadID)
		}
	}

	names, err := s.store.GetUserNames(ctx, s.tenantID, userIDs)
	if err != nil {
		log.Printf("feed: user name lookup failed, degrading: %v", err)
		names = map[string]string{}
	}
	refs, err := s.store.GetLeadRefs(ctx, s.tenantID, leadIDs)
	if err != nil {
		log.Printf("feed: lead ref lookup failed, degrading: %v", err)
		refs = map[string]store.LeadRef{}
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, Enrich(row, names, refs))
	}

	s.mu.Lock()
	s.entries = entries
	s.seen = make(map[string]bool, len(entries))
	for _, entry := range entries {
		s.seen[entry.ID] = true
	}
	s.mu.Unlock()

	return entries, nil
}

// Enrich attaches display data to a raw activity row. Actors that cannot
// be resolved show as UnknownUser rather than failing the row.
func Enrich(row store.ActivityLogEntry, names map[string]string, refs map[string]store.LeadRef) Entry {
	entry := Entry{ActivityLogEntry: row, UserName: UnknownUser}
	if name, ok := names[row.UserID]; ok && name != "" {
		entry.UserName = name
	}
	if ref, ok := refs[row.LeadID]; ok {
		entry.LeadCompany = ref.CompanyName
		entry.LeadContact = ref.ContactPerson
	}
	return entry
}

// Run consumes live inserts until ctx is cancelled. Each insert is
// enriched with single-row lookups, deduplicated against entries already
// in the feed, and prepended. Once ctx is done the synchronizer stops
// mutating its state.
func (s *Synchronizer) Run(ctx context.Context) error {
	events, err := s.source.Subscribe(ctx, s.tenantID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.active = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case row, ok := <-events:
			if !ok {
				return nil
			}
			s.apply(ctx, row)
		}
	}
}

// Active reports whether the live loop is consuming events.
func (s *Synchronizer) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Entries returns a snapshot of the current feed, newest first.
func (s *Synchronizer) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Synchronizer) apply(ctx context.Context, row store.ActivityLogEntry) {
	s.mu.Lock()
	if s.seen[row.ID] {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	// Lookups happen outside the lock; a failed lookup degrades the row
	// instead of dropping it.
	names := map[string]string{}
	if row.UserID != "" {
		if name, err := s.store.GetUserName(ctx, s.tenantID, row.UserID); err == nil {
			names[row.UserID] = name
		} else {
			log.Printf("feed: user lookup for %s failed: %v", row.UserID, err)
		}
	}
	refs := map[string]store.LeadRef{}
	if row.LeadID != "" {
		if ref, err := s.store.GetLeadRef(ctx, s.tenantID, row.LeadID); err == nil {
			refs[row.LeadID] = ref
		} else {
			log.Printf("feed: lead lookup for %s failed: %v", row.LeadID, err)
		}
	}
	entry := Enrich(row, names, refs)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[row.ID] {
		return
	}
	s.seen[row.ID] = true
	s.entries = append([]Entry{entry}, s.entries...)
	if len(s.entries) > s.limit {
		for _, dropped := range s.entries[s.limit:] {
			delete(s.seen, dropped.ID)
		}
		s.entries = s.entries[:s.limit]
	}
}
