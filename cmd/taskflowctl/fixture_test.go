package main

import (
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/taskflow/internal/domain"
	"github.com/gosuda/taskflow/internal/kanban"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type boardFixture struct {
	snap             *kanban.Snapshot
	todo, doing, don *domain.Column
	write, review    *domain.Task
	ship             *domain.Task
}

// newBoardFixture builds "To Do" (Write docs, Review PR), an empty
// "In Progress" and "Done" (Ship release).
func newBoardFixture() *boardFixture {
	board := &domain.Board{ID: uuid.New(), Title: "Launch", Revision: 3}
	col := func(title string, pos int) *domain.Column {
		return &domain.Column{ID: uuid.New(), BoardID: board.ID, Title: title, Position: pos}
	}
	f := &boardFixture{todo: col("To Do", 0), doing: col("In Progress", 1), don: col("Done", 2)}
	task := func(c *domain.Column, title string, pos int, p domain.Priority) *domain.Task {
		return &domain.Task{ID: uuid.New(), BoardID: board.ID, ColumnID: c.ID, Title: title, Position: pos, Priority: p}
	}
	due := testNow.Add(-48 * time.Hour)
	f.write = task(f.todo, "Write docs", 0, domain.PriorityHigh)
	f.write.DueDate = &due
	f.review = task(f.todo, "Review PR", 1, domain.PriorityLow)
	f.ship = task(f.don, "Ship release", 0, domain.PriorityUrgent)

	f.snap = kanban.NewSnapshot(&domain.BoardContent{
		Board:   board,
		Columns: []*domain.Column{f.todo, f.doing, f.don},
		Tasks:   []*domain.Task{f.write, f.review, f.ship},
	})
	return f
}
