package monitor

import (
	"testing"
	"time"

	"github.com/robfig/cron"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontapmon/internal/ontap"
)

func TestParseLagTime(t *testing.T) {
	log := testLogger()

	assert.Equal(t, 5400, parseLagTime("PT1H30M", log))
	assert.Equal(t, 183600, parseLagTime("P2DT3H", log))
	assert.Equal(t, 45, parseLagTime("PT45S", log))
	assert.Equal(t, 93784, parseLagTime("P1DT2H3M4S", log))
	assert.Equal(t, 600, parseLagTime("PT10M", log))
	assert.Equal(t, 0, parseLagTime("PT0S", log))
	// Multi-digit fields.
	assert.Equal(t, 123*86400+12*3600+59*60+59, parseLagTime("P123DT12H59M59S", log))
}

func TestFormatLagTime(t *testing.T) {
	assert.Equal(t, "45 seconds", formatLagTime(45))
	assert.Equal(t, "1 second", formatLagTime(1))
	assert.Equal(t, "1 hour 30 minutes and 0 seconds", formatLagTime(5400))
	assert.Equal(t, "1 day 2 hours 3 minutes and 4 seconds", formatLagTime(93784))
	assert.Equal(t, "2 days 0 hours 0 minutes and 0 seconds", formatLagTime(2*86400))
}

func TestCronExpression(t *testing.T) {
	assert.Equal(t, "* * * * *", cronExpression(ontap.CronFields{}))
	assert.Equal(t, "0,15,30,45 5 * * *", cronExpression(ontap.CronFields{
		Minutes: []int{0, 15, 30, 45},
		Hours:   []int{5},
	}))
	assert.Equal(t, "10 * * * 1,5", cronExpression(ontap.CronFields{
		Minutes:  []int{10},
		Weekdays: []int{1, 5},
	}))
}

func TestLastScheduledRun(t *testing.T) {
	now := time.Date(2024, 1, 10, 10, 33, 0, 0, time.UTC)

	hourly, err := cron.ParseStandard("0 * * * *")
	require.NoError(t, err)
	last, ok := lastScheduledRun(hourly, now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC), last)

	daily, err := cron.ParseStandard("30 2 * * *")
	require.NoError(t, err)
	last, ok = lastScheduledRun(daily, now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 10, 2, 30, 0, 0, time.UTC), last)

	weekly, err := cron.ParseStandard("0 0 * * 0")
	require.NoError(t, err)
	last, ok = lastScheduledRun(weekly, now)
	require.True(t, ok)
	// 2024-01-07 was a Sunday.
	assert.Equal(t, time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC), last)
}

func TestClusterLocation(t *testing.T) {
	assert.Equal(t, time.UTC, clusterLocation(""))
	assert.Equal(t, time.UTC, clusterLocation("Not/AZone"))

	loc := clusterLocation("America/New_York")
	require.NotNil(t, loc)
	assert.Equal(t, "America/New_York", loc.String())
}
