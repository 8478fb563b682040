package models

import "time"

// SwipeAction is the kind of one-way decision an actor records on a target.
type SwipeAction string

const (
	SwipeLike      SwipeAction = "like"
	SwipePass      SwipeAction = "pass"
	SwipeSuperLike SwipeAction = "super_like"
)

// Positive reports whether the action counts toward mutual-like detection.
func (a SwipeAction) Positive() bool {
	return a == SwipeLike || a == SwipeSuperLike
}

// Valid reports whether the action is one of the known kinds.
func (a SwipeAction) Valid() bool {
	return a == SwipeLike || a == SwipePass || a == SwipeSuperLike
}

// Swipe is a one-way decision from ActorID toward TargetID. The unique index
// on the pair gives the single-row-per-direction guarantee the duplicate-swipe
// check relies on.
type Swipe struct {
	ID        uint        `gorm:"primaryKey"`
	ActorID   string      `gorm:"type:text;not null;uniqueIndex:idx_swipe_actor_target"`
	TargetID  string      `gorm:"type:text;not null;uniqueIndex:idx_swipe_actor_target"`
	Action    SwipeAction `gorm:"type:text;not null"`
	CreatedAt time.Time
}
