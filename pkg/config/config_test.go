package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	require.NotNil(t, cfg)
	assert.Equal(t, time.Second, cfg.Polling.Interval)
	assert.Equal(t, 60, cfg.Polling.MaxAttempts)
	assert.True(t, cfg.Backends.ContentStringFallback)
	assert.Equal(t, cfg.Backends.SyllabusURL, cfg.Backends.ReviewURL)
	assert.Equal(t, DraftStoreMemory, cfg.Drafts.Store)
	assert.Equal(t, "X-User-Id", cfg.Backends.ActorHeader)
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("POLLING_INTERVAL", "250ms")
	v.Set("POLLING_MAX_ATTEMPTS", 0)
	v.Set("SYLLABUS_SERVICE_URL", "http://syllabus:9000/api/")
	v.Set("REVIEW_SERVICE_URL", "http://review:9001")
	v.Set("DRAFT_STORE", " Redis ")

	cfg := fromViper(v)
	assert.Equal(t, 250*time.Millisecond, cfg.Polling.Interval)
	assert.Equal(t, 60, cfg.Polling.MaxAttempts)
	assert.Equal(t, "http://syllabus:9000/api", cfg.Backends.SyllabusURL)
	assert.Equal(t, "http://review:9001", cfg.Backends.ReviewURL)
	assert.Equal(t, DraftStoreRedis, cfg.Drafts.Store)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.Equal(t, 3*time.Second, parseDuration("3s", time.Minute))
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a, ,b "))
}
