package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewCooldown(time.Minute)
	c.now = func() time.Time { return now }

	assert.Zero(t, c.Remaining("a@b.com"))

	c.Start("a@b.com")
	assert.Equal(t, time.Minute, c.Remaining("a@b.com"))
	assert.Equal(t, time.Minute, c.Remaining("  A@B.com "), "addresses are case-insensitive")
	assert.Zero(t, c.Remaining("other@b.com"))

	now = now.Add(45 * time.Second)
	assert.Equal(t, 15*time.Second, c.Remaining("a@b.com"))

	now = now.Add(15 * time.Second)
	assert.Zero(t, c.Remaining("a@b.com"))
}

func TestCooldown_Disabled(t *testing.T) {
	c := NewCooldown(0)
	c.Start("a@b.com")
	assert.Zero(t, c.Remaining("a@b.com"))
}
