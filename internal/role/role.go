// Package role maps the numeric role level carried in a verified credential to
// permission classes.
package role

import "fmt"

// Level is the access tier of a caller.
type Level int

const (
	Standard Level = 0
	Manager  Level = 1
	Admin    Level = 2
)

// Class is a named permission class granted by a Level.
type Class string

const (
	ClassParticipant Class = "participant"
	ClassManager     Class = "manager"
	ClassAdmin       Class = "admin"
)

// IsManager reports whether l is manager-or-above.
func (l Level) IsManager() bool {
	return l >= Manager
}

// IsAdmin reports whether l is admin-or-above.
func (l Level) IsAdmin() bool {
	return l >= Admin
}

// Classes returns every class granted by l, lowest first.
func (l Level) Classes() []Class {
	classes := []Class{ClassParticipant}
	if l.IsManager() {
		classes = append(classes, ClassManager)
	}
	if l.IsAdmin() {
		classes = append(classes, ClassAdmin)
	}
	return classes
}

func (l Level) String() string {
	switch {
	case l.IsAdmin():
		return string(ClassAdmin)
	case l.IsManager():
		return string(ClassManager)
	default:
		return string(ClassParticipant)
	}
}

// Parse validates a raw level read from a credential or a request body.
func Parse(v int) (Level, error) {
	if v < int(Standard) || v > int(Admin) {
		return Standard, fmt.Errorf("role level %d out of range", v)
	}
	return Level(v), nil
}
