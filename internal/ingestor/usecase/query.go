package usecase

import (
	"fmt"
	"strings"

	userdomain "github.com/vynious/finOS/internal/user/domain"
)

const (
	oneDayMs          = int64(86_400_000)
	initialWindowDays = int64(7)
	primaryCategory   = "primary"
)

// WindowDays returns how many days back a search must reach to cover
// everything since lastSynced, rounded up. Users that never synced get a
// week; anyone with a watermark gets at least one day.
func WindowDays(nowMs int64, lastSynced *int64) int64 {
	if lastSynced == nil {
		return initialWindowDays
	}
	elapsed := nowMs - *lastSynced
	if elapsed < 0 {
		elapsed = 0
	}
	days := (elapsed + oneDayMs - 1) / oneDayMs
	if days < 1 {
		days = 1
	}
	return days
}

// BuildQuery returns the search clauses for one user's incremental sync.
func BuildQuery(nowMs int64, user *userdomain.User, issuers []string) []string {
	return []string{
		"category:" + primaryCategory,
		fmt.Sprintf("from:(%s)", strings.Join(issuers, " OR ")),
		fmt.Sprintf("newer_than:%dd", WindowDays(nowMs, user.LastSynced)),
	}
}
