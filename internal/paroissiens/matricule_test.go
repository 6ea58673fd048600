package paroissiens

import (
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var matriculePattern = regexp.MustCompile(`^PAR-[0-9A-Z]+-[0-9A-Z]{4}$`)

func TestNewMatriculeFormat(t *testing.T) {
	now := time.Date(2024, 3, 10, 8, 30, 0, 0, time.UTC)
	m := NewMatricule(now)
	require.Regexp(t, matriculePattern, m)

	parts := strings.Split(m, "-")
	require.Len(t, parts, 3)
	millis, err := strconv.ParseInt(strings.ToLower(parts[1]), 36, 64)
	require.NoError(t, err)
	assert.Equal(t, now.UnixMilli(), millis)
}

func TestNewMatriculeVariesWithinSameMillisecond(t *testing.T) {
	now := time.Now()
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		seen[NewMatricule(now)] = true
	}
	assert.Greater(t, len(seen), 1)
}
