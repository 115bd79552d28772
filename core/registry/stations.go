package registry

import (
	"sort"

	"github.com/kilianp07/agvfleet/core/model"
	"github.com/kilianp07/agvfleet/core/routegraph"
)

// Stations is the station registry derived from the route graph.
type Stations struct {
	kinds    map[string]model.StationKind
	capacity map[string]int
	ids      []string
}

// NewStations keeps the stations that exist in the graph and derives their
// capacity from it.
func NewStations(g *routegraph.Graph, stations []model.Station) *Stations {
	known := make(map[string]struct{})
	for _, id := range g.Stations() {
		known[id] = struct{}{}
	}
	s := &Stations{kinds: make(map[string]model.StationKind)}
	var kept []model.Station
	for _, st := range stations {
		if _, ok := known[st.ID]; !ok {
			continue
		}
		s.kinds[st.ID] = st.Kind
		s.ids = append(s.ids, st.ID)
		kept = append(kept, st)
	}
	sort.Strings(s.ids)
	s.capacity = g.StationCapacity(kept)
	return s
}

// IDs returns the station ids, sorted.
func (s *Stations) IDs() []string { return append([]string(nil), s.ids...) }

// Kind returns the kind of a station.
func (s *Stations) Kind(id string) (model.StationKind, bool) {
	k, ok := s.kinds[id]
	return k, ok
}

// IsQueueKind reports whether the station is a pure wait-queue.
func (s *Stations) IsQueueKind(id string) bool {
	k, ok := s.kinds[id]
	return ok && k == model.StationQueue
}

// OfKind returns the stations of the given kind, sorted.
func (s *Stations) OfKind(kind model.StationKind) []string {
	var out []string
	for _, id := range s.ids {
		if s.kinds[id] == kind {
			out = append(out, id)
		}
	}
	return out
}

// Capacity returns the maximum number of concurrent users of a station.
func (s *Stations) Capacity(id string) int { return s.capacity[id] }

// EmptyUsageMap returns a zero-initialised accumulator over all stations.
func (s *Stations) EmptyUsageMap() map[string]int {
	out := make(map[string]int, len(s.ids))
	for _, id := range s.ids {
		out[id] = 0
	}
	return out
}
