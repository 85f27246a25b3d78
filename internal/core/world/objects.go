package world

import "github.com/zeusync/robosim/internal/core/physics"

// Object is a named graspable item lying on the map.
type Object struct {
	Name     string        `json:"name"`
	Position physics.Point `json:"position"`
}
