package domain

import (
	"time"

	"github.com/google/uuid"
)

// Entity names the table a ChangeEvent refers to.
type Entity string

const (
	EntityBoard      Entity = "board"
	EntityColumn     Entity = "column"
	EntityTask       Entity = "task"
	EntityComment    Entity = "comment"
	EntityMembership Entity = "membership"
	// EntityPresence events announce a user opening or leaving a board.
	// They carry the viewer in UserID and are never stored.
	EntityPresence Entity = "presence"
)

type ChangeOp string

const (
	OpInsert ChangeOp = "insert"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
)

// ChangeEvent is one entry of the board change feed. Delivery is
// at-least-once and unordered across entities.
type ChangeEvent struct {
	ID       uuid.UUID `json:"id"`
	Entity   Entity    `json:"entity"`
	Op       ChangeOp  `json:"op"`
	BoardID  uuid.UUID `json:"board_id"`
	EntityID uuid.UUID `json:"entity_id"`
	ParentID uuid.UUID `json:"parent_id,omitzero"` // column for tasks, task for comments
	ActorID  uuid.UUID `json:"actor_id"`
	UserID   uuid.UUID `json:"user_id,omitzero"` // subject of a membership event
	Revision int64     `json:"revision,omitempty"`
	At       time.Time `json:"at"`
}

// NewChangeEvent stamps a new event with an id and the current time.
func NewChangeEvent(entity Entity, op ChangeOp, boardID, entityID, actorID uuid.UUID) ChangeEvent {
	return ChangeEvent{
		ID:       uuid.New(),
		Entity:   entity,
		Op:       op,
		BoardID:  boardID,
		EntityID: entityID,
		ActorID:  actorID,
		At:       time.Now(),
	}
}

// WithParent returns a copy of e with ParentID set.
func (e ChangeEvent) WithParent(id uuid.UUID) ChangeEvent {
	e.ParentID = id
	return e
}

// WithRevision returns a copy of e with Revision set.
func (e ChangeEvent) WithRevision(rev int64) ChangeEvent {
	e.Revision = rev
	return e
}

// WithUser returns a copy of e with UserID set.
func (e ChangeEvent) WithUser(id uuid.UUID) ChangeEvent {
	e.UserID = id
	return e
}

// FeedAckType is the Type of the first frame a change-feed server sends once
// the subscription is in place.
const FeedAckType = "subscribed"

// FeedAck acknowledges a change-feed subscription.
type FeedAck struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}
