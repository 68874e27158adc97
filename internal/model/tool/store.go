package tool

// Store exposes tool lookup for the governor and HTTP handlers.
type Store interface {
	List() []Tool
	FindByID(id string) (Tool, bool)
}

// MemoryStore implements Store over a fixed catalog loaded at startup.
type MemoryStore struct {
	items   []Tool
	aliases map[string]string
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied tools.
func NewMemoryStore(items []Tool) *MemoryStore {
	s := &MemoryStore{
		items:   append([]Tool(nil), items...),
		aliases: make(map[string]string),
	}
	for _, item := range s.items {
		for _, alias := range item.Aliases {
			s.aliases[alias] = item.ID
		}
	}
	return s
}

// List returns the catalog in declaration order.
func (s *MemoryStore) List() []Tool {
	return append([]Tool(nil), s.items...)
}

// FindByID looks up a tool by identifier or alias. Aliases resolve to the canonical tool,
// so quota is counted under the canonical ID.
func (s *MemoryStore) FindByID(id string) (Tool, bool) {
	if canonical, ok := s.aliases[id]; ok {
		id = canonical
	}
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Tool{}, false
}
