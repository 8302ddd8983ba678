package analytics

import (
	"sort"
	"sync"
	"time"

	"nexus-radio/business/entity"
	"nexus-radio/pkg/logger"
)

const (
	maxRecentErrors = 50
)

type ErrorRecord struct {
	Kind    string    `json:"kind"`
	Context string    `json:"context"`
	At      time.Time `json:"at"`
}

type StationStat struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Plays    int       `json:"plays"`
	LastPlay time.Time `json:"last_play"`
}

type Stats struct {
	TotalPlays   int            `json:"total_plays"`
	TotalErrors  int            `json:"total_errors"`
	MostPlayed   *StationStat   `json:"most_played,omitempty"`
	Stations     []StationStat  `json:"stations"`
	ErrorsByKind map[string]int `json:"errors_by_kind"`
	RecentErrors []ErrorRecord  `json:"recent_errors"`
}

// Tracker keeps listening statistics for the lifetime of the process.
type Tracker struct {
	log      *logger.Zerolog
	mu       sync.Mutex
	stations map[string]*StationStat
	errors   map[string]int
	recent   []ErrorRecord
	total    int
	now      func() time.Time
}

func NewTracker(log *logger.Zerolog) *Tracker {
	return &Tracker{
		log:      log,
		stations: make(map[string]*StationStat),
		errors:   make(map[string]int),
		now:      time.Now,
	}
}

func (t *Tracker) TrackStationPlay(station *entity.Station) {
	if station == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.stations[station.ID]
	if !ok {
		st = &StationStat{ID: station.ID, Name: station.Name}
		t.stations[station.ID] = st
	}
	st.Plays++
	st.LastPlay = t.now()

	t.log.Info().Str("station", station.ID).Int("plays", st.Plays).Msg("station play")
}

func (t *Tracker) TrackError(kind, context string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total++
	t.errors[kind]++
	t.recent = append(t.recent, ErrorRecord{Kind: kind, Context: context, At: t.now()})
	if len(t.recent) > maxRecentErrors {
		t.recent = t.recent[len(t.recent)-maxRecentErrors:]
	}

	t.log.Warn().Str("kind", kind).Str("context", context).Msg("playback error")
}

func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	res := Stats{
		TotalErrors:  t.total,
		Stations:     make([]StationStat, 0, len(t.stations)),
		ErrorsByKind: make(map[string]int, len(t.errors)),
		RecentErrors: append([]ErrorRecord(nil), t.recent...),
	}

	for _, st := range t.stations {
		res.TotalPlays += st.Plays
		res.Stations = append(res.Stations, *st)
	}
	sort.Slice(res.Stations, func(i, j int) bool {
		if res.Stations[i].Plays != res.Stations[j].Plays {
			return res.Stations[i].Plays > res.Stations[j].Plays
		}
		return res.Stations[i].ID < res.Stations[j].ID
	})
	if len(res.Stations) > 0 {
		top := res.Stations[0]
		res.MostPlayed = &top
	}

	for k, v := range t.errors {
		res.ErrorsByKind[k] = v
	}

	return res
}
