// Package alerting holds the alert rule logic of ReportWatch: list
// filtering and sorting, create/edit form validation, condition
// evaluation and the runner that executes due alerts.
package alerting

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/good-yellow-bee/reportwatch/internal/models"
)

// SortKey names the field alerts are ordered by.
type SortKey string

const (
	SortByName         SortKey = "name"
	SortByCost         SortKey = "cost"
	SortByTriggerCount SortKey = "triggerCount"
	SortByFailureCount SortKey = "failureCount"
	SortBySuccessRate  SortKey = "successRate"
	SortByCreatedAt    SortKey = "createdAt"
	SortByLastRunAt    SortKey = "lastRunAt"
)

// SortDirection is asc or desc.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ParseSortKey accepts the camelCase keys plus their snake_case spelling.
func ParseSortKey(s string) (SortKey, bool) {
	switch strings.ReplaceAll(strings.ToLower(s), "_", "") {
	case "name":
		return SortByName, true
	case "cost":
		return SortByCost, true
	case "triggercount":
		return SortByTriggerCount, true
	case "failurecount":
		return SortByFailureCount, true
	case "successrate":
		return SortBySuccessRate, true
	case "createdat":
		return SortByCreatedAt, true
	case "lastrunat":
		return SortByLastRunAt, true
	default:
		return "", false
	}
}

// Filter selects and orders alerts for the list views.
type Filter struct {
	Search   string
	Statuses []models.AlertStatus
	// Active is tri-state: nil matches both.
	Active  *bool
	SortBy  SortKey
	SortDir SortDirection
}

// Matches reports whether a single alert passes the filter predicates.
func (f Filter) Matches(a *models.Alert) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(a.Name), q) &&
			!strings.Contains(strings.ToLower(a.Description), q) {
			return false
		}
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, a.Status) {
		return false
	}
	if f.Active != nil && a.Active != *f.Active {
		return false
	}
	return true
}

// Apply returns a new slice with the matching alerts in the requested order.
// The input slice is left untouched.
func Apply(alerts []*models.Alert, f Filter) []*models.Alert {
	out := make([]*models.Alert, 0, len(alerts))
	for _, a := range alerts {
		if f.Matches(a) {
			out = append(out, a)
		}
	}

	compare := comparator(f.SortBy)
	if compare == nil {
		return out
	}
	dir := 1
	if f.SortDir == SortDesc {
		dir = -1
	}
	slices.SortStableFunc(out, func(x, y *models.Alert) int {
		return dir * compare(x, y)
	})
	return out
}

func comparator(key SortKey) func(x, y *models.Alert) int {
	switch key {
	case SortByName:
		col := collate.New(language.English, collate.IgnoreCase)
		return func(x, y *models.Alert) int { return col.CompareString(x.Name, y.Name) }
	case SortByCost:
		return func(x, y *models.Alert) int { return cmp.Compare(x.Cost, y.Cost) }
	case SortByTriggerCount:
		return func(x, y *models.Alert) int { return cmp.Compare(x.TriggerCount, y.TriggerCount) }
	case SortByFailureCount:
		return func(x, y *models.Alert) int { return cmp.Compare(x.FailureCount, y.FailureCount) }
	case SortBySuccessRate:
		return func(x, y *models.Alert) int { return cmp.Compare(x.SuccessRate, y.SuccessRate) }
	case SortByCreatedAt:
		return func(x, y *models.Alert) int { return x.CreatedAt.Compare(y.CreatedAt) }
	case SortByLastRunAt:
		return func(x, y *models.Alert) int { return x.LastRunAt.Compare(y.LastRunAt) }
	default:
		return nil
	}
}
