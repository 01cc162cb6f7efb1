package cache

import (
	"strings"

	"github.com/google/uuid"
)

// Key identifies one cached query.
type Key string

// BoardsKey caches the board list of the current user.
const BoardsKey Key = "boards"

// CommentsPrefix matches every per-task comment list.
const CommentsPrefix Key = "comments:"

// BoardKey caches a board snapshot.
func BoardKey(boardID uuid.UUID) Key {
	return Key("board:" + boardID.String())
}

// CommentsKey caches the comment list of a task.
func CommentsKey(taskID uuid.UUID) Key {
	return CommentsPrefix + Key(taskID.String())
}

// MembersKey caches the member list of a board.
func MembersKey(boardID uuid.UUID) Key {
	return Key("members:" + boardID.String())
}

// ArchivedKey caches the archived tasks of a board.
func ArchivedKey(boardID uuid.UUID) Key {
	return Key("archived:" + boardID.String())
}

// AccessKey caches the permissions of the current user on a board.
func AccessKey(boardID uuid.UUID) Key {
	return Key("access:" + boardID.String())
}

// PresenceKey caches the users who have a board open.
func PresenceKey(boardID uuid.UUID) Key {
	return Key("presence:" + boardID.String())
}

// HasPrefix reports whether k starts with prefix.
func (k Key) HasPrefix(prefix Key) bool {
	return strings.HasPrefix(string(k), string(prefix))
}
