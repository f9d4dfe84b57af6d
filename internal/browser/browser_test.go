package browser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablescout/review-pipeline/internal/resilience"
)

func TestOptions_WithDefaults(t *testing.T) {
	opts := Options{}.withDefaults()
	assert.Equal(t, defaultUserAgent, opts.UserAgent)
	assert.Equal(t, 45*time.Second, opts.NavTimeout)
	assert.Less(t, opts.ReadyTimeout, opts.NavTimeout, "readiness wait is bounded below the navigation timeout")
	assert.Positive(t, opts.PollInterval)

	custom := Options{UserAgent: "ua", NavTimeout: 10 * time.Second, ReadyTimeout: 2 * time.Second}.withDefaults()
	assert.Equal(t, "ua", custom.UserAgent)
	assert.Equal(t, 10*time.Second, custom.NavTimeout)
	assert.Equal(t, 2*time.Second, custom.ReadyTimeout)

	// a ready timeout at or above the nav timeout is clamped back down
	clamped := Options{NavTimeout: 8 * time.Second, ReadyTimeout: 20 * time.Second}.withDefaults()
	assert.Equal(t, 2*time.Second, clamped.ReadyTimeout)
}

func TestClickFirstScript_EscapesSelectors(t *testing.T) {
	script := clickFirstScript([]string{`button[aria-label="同意する"]`, `#consent "quoted"`})
	assert.Contains(t, script, `button[aria-label=\"同意する\"]`)
	assert.Contains(t, script, `\"quoted\"`)
	assert.Contains(t, script, "node.click()")
}

func TestFirstPresentScript_ReturnsMatchedSelector(t *testing.T) {
	script := firstPresentScript([]string{"div.captcha-container", "form#challenge-form"})
	assert.Contains(t, script, "div.captcha-container")
	assert.Contains(t, script, "form#challenge-form")
	assert.Contains(t, script, "return sel")
}

func TestFetchOutcome_BlockMarkerWins(t *testing.T) {
	err := fetchOutcome("https://tabelog.example/r", "", "div.captcha-container")
	var blocked *resilience.BlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, "div.captcha-container", blocked.Marker)

	err = fetchOutcome("https://tabelog.example/r", "button#onetrust-accept-btn-handler", "div.captcha-container")
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, "div.captcha-container", blocked.Marker, "an explicit block marker outranks a lingering consent dialog")
}

func TestFetchOutcome_StuckConsentIsBlocked(t *testing.T) {
	// a consent dialog still present after dismissal means the page content
	// is unreadable, not empty
	err := fetchOutcome("https://tabelog.example/r", "button#onetrust-accept-btn-handler", "")
	var blocked *resilience.BlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, "button#onetrust-accept-btn-handler", blocked.Marker)
	assert.True(t, resilience.IsBlocked(err))
}

func TestFetchOutcome_CleanPage(t *testing.T) {
	assert.NoError(t, fetchOutcome("https://tabelog.example/r", "", ""))
}
