package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/tcl-live/backend/internal/db"
	"github.com/tcl-live/backend/internal/models"
)

// AlertRepository serves alerts grouped the way riders think of them: one
// disruption affecting N lines, although the store holds one row per
// (alert, line) pair.
type AlertRepository struct {
	db *db.DB
}

// NewAlertRepository creates a new AlertRepository
func NewAlertRepository(database *db.DB) *AlertRepository {
	return &AlertRepository{db: database}
}

type alertKey struct {
	title, message string
	severityType   string
	hasType        bool
}

type alertGroup struct {
	alert      models.Alert
	lastUpdate *string
	lines      map[string]struct{}
}

// List groups alert rows by (title, message, severity_type). Each group
// carries the max severity level, the max last update and the sorted set of
// affected lines. Groups are ordered by severity ascending (nulls last),
// then most recent first.
func (r *AlertRepository) List(ctx context.Context, page Page) ([]models.Alert, error) {
	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT title, message, severity_type, severity_level, last_update, line_commercial_name
		FROM alerts
		WHERE title IS NOT NULL AND message IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	groups := make(map[alertKey]*alertGroup)
	var order []*alertGroup
	for rows.Next() {
		var (
			title, message           string
			severityType, lastUpdate *string
			line                     *string
			severityLevel            *int
		)
		if err := rows.Scan(&title, &message, &severityType, &severityLevel, &lastUpdate, &line); err != nil {
			return nil, fmt.Errorf("failed to scan alert row: %w", err)
		}

		key := alertKey{title: title, message: message}
		if severityType != nil {
			key.severityType, key.hasType = *severityType, true
		}
		g, ok := groups[key]
		if !ok {
			g = &alertGroup{
				alert: models.Alert{Title: title, Message: message, SeverityType: severityType},
				lines: make(map[string]struct{}),
			}
			groups[key] = g
			order = append(order, g)
		}
		if severityLevel != nil && (g.alert.SeverityLevel == nil || *severityLevel > *g.alert.SeverityLevel) {
			g.alert.SeverityLevel = severityLevel
		}
		if lastUpdate != nil && (g.lastUpdate == nil || *lastUpdate > *g.lastUpdate) {
			g.lastUpdate = lastUpdate
		}
		if line != nil {
			g.lines[*line] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alert rows: %w", err)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return alertLess(order[i], order[j])
	})

	alerts := make([]models.Alert, 0, len(order))
	for _, g := range order {
		a := g.alert
		a.AffectedLines = make([]string, 0, len(g.lines))
		for line := range g.lines {
			a.AffectedLines = append(a.AffectedLines, line)
		}
		sort.Strings(a.AffectedLines)
		a.LinesCount = len(a.AffectedLines)
		if a.LinesCount > 0 {
			first := a.AffectedLines[0]
			a.LineCommercialName = &first
		}
		alerts = append(alerts, a)
	}
	return window(alerts, page), nil
}

func alertLess(a, b *alertGroup) bool {
	la, lb := a.alert.SeverityLevel, b.alert.SeverityLevel
	switch {
	case la != nil && lb == nil:
		return true
	case la == nil && lb != nil:
		return false
	case la != nil && lb != nil && *la != *lb:
		return *la < *lb
	}

	ua, ub := a.lastUpdate, b.lastUpdate
	switch {
	case ua != nil && ub == nil:
		return true
	case ua == nil && ub != nil:
		return false
	case ua != nil && ub != nil && *ua != *ub:
		return *ua > *ub
	}

	if a.alert.Title != b.alert.Title {
		return a.alert.Title < b.alert.Title
	}
	return a.alert.Message < b.alert.Message
}

// Count returns the number of distinct (title, message) alerts
func (r *AlertRepository) Count(ctx context.Context) (int, error) {
	return countRows(ctx, r.db, "alerts", `
		SELECT COUNT(*) FROM (
			SELECT DISTINCT title, message
			FROM alerts
			WHERE title IS NOT NULL AND message IS NOT NULL
		) AS distinct_alerts
	`)
}
