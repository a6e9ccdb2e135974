package track

import (
	"context"
	"errors"
	"time"
)

// State is the resolution state of a Track.
type State int

const (
	StateUnresolved State = iota
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// ErrNotUnresolved is returned by finders asked to match a track that is not a placeholder.
var ErrNotUnresolved = errors.New("provided track is not an unresolved track")

// Track is either an unresolved placeholder or a resolved playable track.
// Track values are immutable; resolution yields a new value.
type Track struct {
	state       State
	placeholder Placeholder
	concrete    Concrete
	requester   any
}

// Finder picks the concrete track that best matches an unresolved one.
type Finder interface {
	ClosestTrack(ctx context.Context, t Track) (Concrete, error)
}

// NewUnresolved builds a placeholder track awaiting resolution.
func NewUnresolved(p Placeholder, requester any) Track {
	return Track{state: StateUnresolved, placeholder: p, requester: requester}
}

// NewResolved builds a playable track.
func NewResolved(c Concrete, requester any) Track {
	return Track{state: StateResolved, concrete: c, requester: requester}
}

// State returns the resolution state.
func (t Track) State() State { return t.state }

// IsResolved reports whether t is playable.
func (t Track) IsResolved() bool { return t.state == StateResolved }

// Placeholder returns the placeholder of an unresolved track.
func (t Track) Placeholder() (Placeholder, bool) {
	return t.placeholder, t.state == StateUnresolved
}

// Concrete returns the playable track of a resolved track.
func (t Track) Concrete() (Concrete, bool) {
	return t.concrete, t.state == StateResolved
}

// Requester returns whoever asked for the track.
func (t Track) Requester() any { return t.requester }

func (t Track) Title() string {
	if t.state == StateResolved {
		return t.concrete.Title
	}
	return t.placeholder.Title
}

func (t Track) Author() string {
	if t.state == StateResolved {
		return t.concrete.Author
	}
	return t.placeholder.Author
}

func (t Track) Duration() time.Duration {
	if t.state == StateResolved {
		return t.concrete.Duration
	}
	return t.placeholder.Duration
}

func (t Track) URI() string {
	if t.state == StateResolved {
		return t.concrete.URI
	}
	return t.placeholder.URI
}

func (t Track) Thumbnail() string {
	if t.state == StateResolved {
		return t.concrete.Thumbnail
	}
	return t.placeholder.Thumbnail
}

// Resolve matches an unresolved track through f and returns the resolved track.
// The placeholder's title, thumbnail and URI win over the matched track's so the
// display identity stays the one originally supplied. On error t is returned as is.
func (t Track) Resolve(ctx context.Context, f Finder) (Track, error) {
	if t.state == StateResolved {
		return t, nil
	}

	c, err := f.ClosestTrack(ctx, t)
	if err != nil {
		return t, err
	}

	if t.placeholder.Title != "" {
		c.Title = t.placeholder.Title
	}
	if t.placeholder.Thumbnail != "" {
		c.Thumbnail = t.placeholder.Thumbnail
	}
	if t.placeholder.URI != "" {
		c.URI = t.placeholder.URI
	}

	return NewResolved(c, t.requester), nil
}
