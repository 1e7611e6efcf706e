package badgr

import (
	"log/slog"
	"sync"
)

// badgeNameIndex maps issuer id and badge class name to the badge class id.
// It is only maintained when Config.UniqueBadgeNames is set.
type badgeNameIndex struct {
	mu     sync.RWMutex
	byName map[string]map[string]string // issuer id -> name -> badge class id
}

func newBadgeNameIndex() *badgeNameIndex {
	return &badgeNameIndex{byName: make(map[string]map[string]string)}
}

// save indexes bc. Badge classes missing an id, name or issuer are skipped.
func (idx *badgeNameIndex) save(log *slog.Logger, bc *BadgeClass) {
	if bc.EntityID == "" || bc.Name == "" || bc.Issuer == "" {
		log.Debug("not indexing badge class without id, name or issuer", "badge_class", bc.EntityID)
		return
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	names, ok := idx.byName[bc.Issuer]
	if !ok {
		names = make(map[string]string)
		idx.byName[bc.Issuer] = names
	}
	if prev, ok := names[bc.Name]; ok && prev != bc.EntityID {
		log.Warn("badge class name is not unique",
			"issuer", bc.Issuer,
			"name", bc.Name,
			"previous", prev,
			"current", bc.EntityID,
		)
	}
	names[bc.Name] = bc.EntityID
}

// replace drops the names indexed for issuerID and indexes badges instead.
func (idx *badgeNameIndex) replace(log *slog.Logger, issuerID string, badges []*BadgeClass) {
	idx.mu.Lock()
	delete(idx.byName, issuerID)
	idx.mu.Unlock()

	for _, bc := range badges {
		idx.save(log, bc)
	}
}

func (idx *badgeNameIndex) lookup(issuerID, name string) (string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	id, ok := idx.byName[issuerID][name]
	return id, ok
}
