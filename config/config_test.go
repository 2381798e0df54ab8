package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReadHelpersFallBack(t *testing.T) {
	t.Setenv("TEST_INT", "abc")
	t.Setenv("TEST_BOOL", "maybe")
	t.Setenv("TEST_FLOAT", "")

	assert.Equal(t, 7, readInt("TEST_INT", 7))
	assert.True(t, readBool("TEST_BOOL", true))
	assert.Equal(t, 2.5, readFloat("TEST_FLOAT", 2.5))
	assert.Equal(t, "x", readString("TEST_MISSING_STRING", "x"))
}

func TestReadList(t *testing.T) {
	t.Setenv("TEST_LIST", " http://a.test, ,http://b.test ")
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, readList("TEST_LIST"))
	assert.Nil(t, readList("TEST_LIST_MISSING"))
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("RESERVATION_DURATION_MINUTES", "90")
	t.Setenv("RESERVATION_AUTO_CONFIRM", "true")
	t.Setenv("ALERT_SCAN_INTERVAL_SECONDS", "0")
	t.Setenv("EVENT_BUFFER_SIZE", "64")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 90*time.Minute, cfg.SeatingDuration)
	assert.True(t, cfg.AutoConfirm)
	assert.Zero(t, cfg.AlertScanInterval)
	assert.Equal(t, "restaurant.events", cfg.KafkaTopic)
	assert.Equal(t, 64, cfg.EventBufferSize)
}
