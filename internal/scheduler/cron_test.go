package scheduler

import (
	"testing"
	"time"

	"github.com/Dias221467/FoodRescue/internal/jobs"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecsParse(t *testing.T) {
	from := time.Date(2024, 3, 1, 12, 1, 0, 0, time.UTC)

	sweep, err := cron.ParseStandard(SweepSpec)
	require.NoError(t, err)
	assert.Equal(t, from.Add(5*time.Minute), sweep.Next(from))

	purge, err := cron.ParseStandard(PurgeSpec)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), purge.Next(from))
}

func TestStartCronJobsRegistersBothJobs(t *testing.T) {
	c, err := StartCronJobs(jobs.NewExpirySweeper(nil, nil, nil))
	require.NoError(t, err)
	defer c.Stop()

	assert.Len(t, c.Entries(), 2)
}
