package monitor

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontapmon/internal/store"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestEventExistsResetsRefresh(t *testing.T) {
	events := []Event{{Index: "a", Refresh: 1}, {Index: "b", Refresh: 2}}

	assert.True(t, eventExists(events, "a"))
	assert.Equal(t, eventResilience, events[0].Refresh)
	assert.Equal(t, 2, events[1].Refresh)

	assert.False(t, eventExists(events, "missing"))
}

func TestPruneEventsEvicts(t *testing.T) {
	events := []Event{
		{Index: "expired", Refresh: 0},
		{Index: "alive", Refresh: eventResilience},
	}

	kept, changed := pruneEvents(events, testLogger())
	require.Len(t, kept, 1)
	assert.Equal(t, "alive", kept[0].Index)
	assert.True(t, changed)
}

func TestPruneEventsUnchangedWhenAllRefreshed(t *testing.T) {
	events := []Event{
		{Index: "a", Refresh: eventResilience},
		{Index: "b", Refresh: eventResilience},
	}

	kept, changed := pruneEvents(events, testLogger())
	assert.Len(t, kept, 2)
	assert.False(t, changed)
}

func TestPruneEventsChangedWhenCounterDecayed(t *testing.T) {
	events := []Event{{Index: "a", Refresh: eventResilience - 1}}

	kept, changed := pruneEvents(events, testLogger())
	assert.Len(t, kept, 1)
	assert.True(t, changed)
}

// A poll whose conditions all re-match must not write the blob back.
func TestEventListWriteElision(t *testing.T) {
	st := store.NewMemory()
	log := testLogger()

	list, err := loadEventList(st, "events")
	require.NoError(t, err)
	list.age()
	list.add(Event{Index: "cond1"})
	list.prune(log)
	require.NoError(t, list.save(st))
	assert.Equal(t, 1, st.Writes())

	// Same condition present again: refresh resets, nothing to persist.
	list, err = loadEventList(st, "events")
	require.NoError(t, err)
	list.age()
	assert.True(t, list.exists("cond1"))
	list.prune(log)
	require.NoError(t, list.save(st))
	assert.Equal(t, 1, st.Writes())
}

func TestEventListEvictionAfterRepeatedAbsence(t *testing.T) {
	st := store.NewMemory()
	log := testLogger()

	list, err := loadEventList(st, "events")
	require.NoError(t, err)
	list.add(Event{Index: "gone"})
	require.NoError(t, list.save(st))

	for poll := 0; poll < eventResilience; poll++ {
		list, err = loadEventList(st, "events")
		require.NoError(t, err)
		list.age()
		list.prune(log)
		require.NoError(t, list.save(st))
	}

	list, err = loadEventList(st, "events")
	require.NoError(t, err)
	assert.Empty(t, list.events)
}
