package relevance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterMatch(t *testing.T) {
	f, err := New(DefaultKeywords)
	require.NoError(t, err)

	assert.True(t, f.Match("You spent $12.34"))
	assert.True(t, f.Match("Payment confirmation"))
	assert.True(t, f.Match("TRANSACTION ALERT"))
	assert.False(t, f.Match("Weekly newsletter"))
	assert.False(t, f.Match("Hello"))
	assert.False(t, f.Match("Repayments schedule"), "keywords match whole words only")
}

func TestFilterCustomKeywords(t *testing.T) {
	f, err := New([]string{" receipt ", "", "c++"})
	require.NoError(t, err)

	assert.True(t, f.Match("Your receipt is ready"))
	assert.False(t, f.Match("Your payment went through"))
}

func TestNewRejectsEmptyKeywordSet(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNoKeywords)

	_, err = New([]string{" ", ""})
	assert.ErrorIs(t, err, ErrNoKeywords)
}
