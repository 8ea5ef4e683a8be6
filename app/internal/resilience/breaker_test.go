package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBreakers_OpensAtThreshold(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	b := NewBreakers(5, time.Minute)
	b.now = clock.Now

	for i := 0; i < 4; i++ {
		b.RecordFailure("openai")
		assert.False(t, b.IsOpen("openai"), "failure %d", i+1)
	}
	b.RecordFailure("openai")
	assert.True(t, b.IsOpen("openai"))
	assert.False(t, b.IsOpen("gemini"))

	st := b.State("openai")
	assert.Equal(t, 5, st.Failures)
	assert.True(t, st.Open)
}

func TestBreakers_CooldownAndReopen(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	b := NewBreakers(2, time.Minute)
	b.now = clock.Now

	b.RecordFailure("p")
	b.RecordFailure("p")
	assert.True(t, b.IsOpen("p"))

	clock.Advance(59 * time.Second)
	assert.True(t, b.IsOpen("p"))

	clock.Advance(time.Second)
	assert.False(t, b.IsOpen("p"), "cooldown elapsed")

	// a failed trial call opens it again immediately
	b.RecordFailure("p")
	assert.True(t, b.IsOpen("p"))
}

func TestBreakers_SuccessResets(t *testing.T) {
	b := NewBreakers(2, time.Minute)
	b.RecordFailure("p")
	b.RecordFailure("p")
	assert.True(t, b.IsOpen("p"))

	b.RecordSuccess("p")
	assert.False(t, b.IsOpen("p"))
	assert.Equal(t, 0, b.State("p").Failures)
}

func TestNewBreakers_Defaults(t *testing.T) {
	b := NewBreakers(0, 0)
	assert.Equal(t, DefaultFailureThreshold, b.threshold)
	assert.Equal(t, DefaultCooldown, b.cooldown)
}
