package monitor

import (
	"github.com/sirupsen/logrus"

	"github.com/ontapmon/internal/store"
)

// eventResilience is how many consecutive polls a condition must be absent
// before its record is evicted and its alert may fire again. The EMS listing
// occasionally drops events from one poll's response and returns them on the
// next; without this hysteresis every such flap would re-alert.
const eventResilience = 4

// initialVersion is the version sentinel stored before the first successful
// cluster read.
const initialVersion = "Initial Run"

// Event is the deduplication record for one alert condition. Index is a
// synthetic key combining a resource identifier and the rule key that fired.
type Event struct {
	Index       string `json:"index"`
	Time        string `json:"time,omitempty"`
	MessageName string `json:"messageName,omitempty"`
	Message     string `json:"message,omitempty"`
	Refresh     int    `json:"refresh"`
}

// ageEvents decrements every refresh counter. Called once per poll before
// evaluation; a re-match during evaluation resets the counter.
func ageEvents(events []Event) {
	for i := range events {
		events[i].Refresh--
	}
}

// eventExists reports whether index is already recorded, resetting its
// refresh counter when it is. A true return means the alert is a duplicate
// and must be suppressed.
func eventExists(events []Event, index string) bool {
	for i := range events {
		if events[i].Index == index {
			events[i].Refresh = eventResilience
			return true
		}
	}
	return false
}

// pruneEvents drops every event whose refresh ran out. The changed result is
// true when anything was removed or any survivor is below the maximum, i.e.
// when the list differs from what a fully-matching poll would have produced.
func pruneEvents(events []Event, log *logrus.Logger) ([]Event, bool) {
	changed := false
	kept := events[:0]
	for _, ev := range events {
		if ev.Refresh <= 0 {
			log.Debugf("deleting event %s", ev.Index)
			changed = true
			continue
		}
		if ev.Refresh != eventResilience {
			changed = true
		}
		kept = append(kept, ev)
	}
	return kept, changed
}

// eventList is one category's persisted event sequence plus its dirty flag.
// The list is only written back when something actually changed.
type eventList struct {
	key     string
	events  []Event
	changed bool
}

func loadEventList(st store.Store, key string) (*eventList, error) {
	l := &eventList{key: key}
	if _, err := st.GetJSON(key, &l.events); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *eventList) age() {
	ageEvents(l.events)
}

func (l *eventList) exists(index string) bool {
	return eventExists(l.events, index)
}

// add appends a fresh event at full resilience and marks the list dirty.
func (l *eventList) add(ev Event) {
	ev.Refresh = eventResilience
	l.events = append(l.events, ev)
	l.changed = true
}

func (l *eventList) prune(log *logrus.Logger) {
	events, changed := pruneEvents(l.events, log)
	l.events = events
	if changed {
		l.changed = true
	}
}

func (l *eventList) save(st store.Store) error {
	if !l.changed {
		return nil
	}
	return st.PutJSON(l.key, l.events)
}
