package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"colony/pkg/proto"
)

const (
	defaultMarketCap     = 512
	defaultArbitrageCap  = 256
	defaultWhaleCap      = 512
	defaultResearchCap   = 256
	defaultContentCap    = 256
	defaultAlertRingSize = 1024

	// schemaVersion is the only document version this store understands.
	// A mismatched version on load is treated like a malformed file.
	schemaVersion = 1
)

// Store is the Shared State Store: the set of named typed collections the
// rest of the runtime reads from and publishes into. A single snapshot
// round-trips the whole store to/from one JSON file.
type Store struct {
	path string

	// freezeMu is held for the duration of Save's snapshot phase so that
	// "briefly freezing all writes" (spec §4.3) has a concrete meaning:
	// every collection's Put already serialises with respect to itself,
	// and Save additionally serialises with respect to every other Save.
	freezeMu sync.Mutex

	Market    *Collection[MarketSnapshot]
	Arbitrage *Collection[ArbitrageOpportunity]
	Whales    *Collection[WhaleMovement]
	Research  *Collection[ResearchReport]
	Content   *Collection[ContentPiece]
	Alerts    *Collection[proto.Alert]
}

// New builds a Store with the spec's default collection set and default
// bounds. path is where Save/Load persist the JSON snapshot.
func New(path string) *Store {
	return &Store{
		path: path,
		Market: NewLatestWins(
			"market_snapshot",
			func(m MarketSnapshot) string { return m.key() },
			nil,
		),
		Arbitrage: NewSequence(
			"arbitrage_opportunity",
			defaultArbitrageCap,
			func(a, b ArbitrageOpportunity) bool { return a.ProfitPercent < b.ProfitPercent },
		),
		Whales:   NewSequence[WhaleMovement]("whale_movement", defaultWhaleCap, nil),
		Research: NewSequence[ResearchReport]("research_report", defaultResearchCap, nil),
		Content:  NewSequence[ContentPiece]("content_piece", defaultContentCap, nil),
		Alerts:   NewRing[proto.Alert]("alert", defaultAlertRingSize),
	}
}

// PublishAlert is a convenience wrapper publishing to the Alert
// collection; it never blocks and never fails.
func (s *Store) PublishAlert(a proto.Alert) {
	_, _ = s.Alerts.Put(a)
}

// document is the on-disk shape of a full snapshot: version, a save
// timestamp, and one key per StateCollection (spec §6).
type document struct {
	Version   int                     `json:"version"`
	SavedAt   time.Time               `json:"saved_at"`
	Market    []MarketSnapshot        `json:"market_snapshot"`
	Arbitrage []ArbitrageOpportunity  `json:"arbitrage_opportunity"`
	Whales    []WhaleMovement         `json:"whale_movement"`
	Research  []ResearchReport        `json:"research_report"`
	Content   []ContentPiece          `json:"content_piece"`
	Alerts    []proto.Alert           `json:"alert"`
}

// Save writes every collection's current contents to the store's JSON
// file atomically (temp file + rename), freezing writes only for the
// instant it takes to read each collection's snapshot.
func (s *Store) Save() error {
	s.freezeMu.Lock()
	defer s.freezeMu.Unlock()

	doc := document{
		Version:   schemaVersion,
		SavedAt:   time.Now().UTC(),
		Market:    s.Market.snapshot(),
		Arbitrage: s.Arbitrage.snapshot(),
		Whales:    s.Whales.snapshot(),
		Research:  s.Research.snapshot(),
		Content:   s.Content.snapshot(),
		Alerts:    s.Alerts.snapshot(),
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("state: marshal snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state: create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json.tmp")
	if err != nil {
		return fmt.Errorf("state: create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("state: write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("state: sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("state: close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("state: rename snapshot into place: %w", err)
	}
	return nil
}

// Load restores every collection from the store's JSON file. A missing
// file is tolerated (collections stay empty); a malformed file leaves
// the store empty and publishes a state_load_error alert rather than
// failing the caller.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("state: read snapshot: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.PublishAlert(proto.Alert{
			Kind:     "state_load_error",
			Payload:  err.Error(),
			Severity: proto.SeverityError,
		})
		return nil
	}

	if doc.Version != schemaVersion {
		s.PublishAlert(proto.Alert{
			Kind:     "unsupported_state_version",
			Payload:  fmt.Sprintf("got version %d, want %d", doc.Version, schemaVersion),
			Severity: proto.SeverityError,
		})
		return nil
	}

	s.Market.restore(doc.Market)
	s.Arbitrage.restore(doc.Arbitrage)
	s.Whales.restore(doc.Whales)
	s.Research.restore(doc.Research)
	s.Content.restore(doc.Content)
	s.Alerts.restore(doc.Alerts)
	return nil
}
