package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/taskflow/internal/domain"
	"github.com/gosuda/taskflow/internal/kanban"
)

var (
	errNoMatch   = errors.New("no match")
	errAmbiguous = errors.New("ambiguous reference")
)

func parseBoardID(ref string) (uuid.UUID, error) {
	id, err := uuid.Parse(ref)
	if err != nil {
		return uuid.Nil, fmt.Errorf("board %q: expected a board id", ref)
	}
	return id, nil
}

// resolveColumn finds a column by id or case-insensitive title.
func resolveColumn(snap *kanban.Snapshot, ref string) (*domain.Column, error) {
	if id, err := uuid.Parse(ref); err == nil {
		if cv := snap.Column(id); cv != nil {
			return &cv.Column, nil
		}
		return nil, fmt.Errorf("column %q: %w", ref, errNoMatch)
	}
	for _, cv := range snap.Columns {
		if strings.EqualFold(cv.Column.Title, strings.TrimSpace(ref)) {
			return &cv.Column, nil
		}
	}
	return nil, fmt.Errorf("column %q: %w", ref, errNoMatch)
}

// resolveTask finds a live task by id, id prefix or case-insensitive title.
func resolveTask(snap *kanban.Snapshot, ref string) (*domain.Task, error) {
	if id, err := uuid.Parse(ref); err == nil {
		if t := snap.Task(id); t != nil {
			return t, nil
		}
		return nil, fmt.Errorf("task %q: %w", ref, errNoMatch)
	}

	ref = strings.TrimSpace(ref)
	var found []*domain.Task
	for _, cv := range snap.Columns {
		for _, t := range cv.Tasks {
			if strings.EqualFold(t.Title, ref) || (len(ref) >= 4 && strings.HasPrefix(t.ID.String(), strings.ToLower(ref))) {
				found = append(found, t)
			}
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("task %q: %w", ref, errNoMatch)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("task %q matches %d tasks: %w", ref, len(found), errAmbiguous)
	}
}

// parseDue accepts YYYY-MM-DD in the local zone.
func parseDue(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return nil, fmt.Errorf("due date %q: expected YYYY-MM-DD", s)
	}
	return &d, nil
}
