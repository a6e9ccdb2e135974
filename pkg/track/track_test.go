package track

import (
	"context"
	"errors"
	"testing"
	"time"
)

type finderFunc func(ctx context.Context, t Track) (Concrete, error)

func (f finderFunc) ClosestTrack(ctx context.Context, t Track) (Concrete, error) {
	return f(ctx, t)
}

func TestTrack_Resolve_MergesDisplayFields(t *testing.T) {
	placeholder := Placeholder{
		Title:     "Never Gonna Give You Up",
		Author:    "Rick Astley",
		Duration:  213 * time.Second,
		URI:       "https://open.spotify.com/track/4cOdK2wGLETKBW3PvgPWqT",
		Thumbnail: "https://i.scdn.co/image/cover",
	}
	concrete := Concrete{
		Encoded:    "QAAAjQIAJVJpY2sgQXN0bGV5",
		Identifier: "dQw4w9WgXcQ",
		Title:      "Rick Astley - Never Gonna Give You Up (Official Video)",
		Author:     "Rick Astley",
		Duration:   212 * time.Second,
		URI:        "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Thumbnail:  "https://img.youtube.com/vi/dQw4w9WgXcQ/default.jpg",
		IsSeekable: true,
	}

	original := NewUnresolved(placeholder, "requester-1")
	resolved, err := original.Resolve(context.Background(), finderFunc(func(context.Context, Track) (Concrete, error) {
		return concrete, nil
	}))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	got, ok := resolved.Concrete()
	if !ok {
		t.Fatal("Resolve() did not produce a resolved track")
	}

	if got.Title != placeholder.Title {
		t.Errorf("Title = %q, want placeholder title %q", got.Title, placeholder.Title)
	}
	if got.URI != placeholder.URI {
		t.Errorf("URI = %q, want placeholder URI %q", got.URI, placeholder.URI)
	}
	if got.Thumbnail != placeholder.Thumbnail {
		t.Errorf("Thumbnail = %q, want placeholder thumbnail %q", got.Thumbnail, placeholder.Thumbnail)
	}
	if got.Encoded != concrete.Encoded || got.Identifier != concrete.Identifier {
		t.Errorf("playback fields not carried over: %+v", got)
	}
	if got.Duration != concrete.Duration {
		t.Errorf("Duration = %v, want %v", got.Duration, concrete.Duration)
	}
	if !got.IsSeekable {
		t.Error("IsSeekable should come from the concrete track")
	}
	if resolved.Requester() != "requester-1" {
		t.Errorf("Requester() = %v, want requester-1", resolved.Requester())
	}

	// The original value is untouched.
	if original.IsResolved() {
		t.Error("original track should still be unresolved")
	}
}

func TestTrack_Resolve_EmptyDisplayFieldsKeepConcrete(t *testing.T) {
	concrete := Concrete{Title: "Found", URI: "https://example.com/found", Thumbnail: "thumb"}
	original := NewUnresolved(Placeholder{Title: "Wanted"}, nil)

	resolved, err := original.Resolve(context.Background(), finderFunc(func(context.Context, Track) (Concrete, error) {
		return concrete, nil
	}))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if resolved.Title() != "Wanted" {
		t.Errorf("Title() = %q, want %q", resolved.Title(), "Wanted")
	}
	if resolved.URI() != concrete.URI {
		t.Errorf("URI() = %q, want %q", resolved.URI(), concrete.URI)
	}
	if resolved.Thumbnail() != concrete.Thumbnail {
		t.Errorf("Thumbnail() = %q, want %q", resolved.Thumbnail(), concrete.Thumbnail)
	}
}

func TestTrack_Resolve_FailureLeavesTrackUnchanged(t *testing.T) {
	placeholder := Placeholder{Title: "Song", Author: "Artist", Duration: time.Minute, URI: "uri", Thumbnail: "thumb"}
	original := NewUnresolved(placeholder, nil)
	wantErr := &Exception{Message: "No tracks found.", Severity: SeverityCommon}

	got, err := original.Resolve(context.Background(), finderFunc(func(context.Context, Track) (Concrete, error) {
		return Concrete{Title: "partial"}, wantErr
	}))
	if !errors.Is(err, wantErr) {
		t.Fatalf("Resolve() error = %v, want %v", err, wantErr)
	}

	if got.IsResolved() {
		t.Error("failed resolution must not produce a resolved track")
	}
	p, ok := got.Placeholder()
	if !ok || p != placeholder {
		t.Errorf("Placeholder() = %+v, want %+v", p, placeholder)
	}
	if p, _ := original.Placeholder(); p != placeholder {
		t.Errorf("original placeholder changed to %+v", p)
	}
}

func TestTrack_Resolve_AlreadyResolved(t *testing.T) {
	resolved := NewResolved(Concrete{Title: "Done"}, nil)
	called := false

	got, err := resolved.Resolve(context.Background(), finderFunc(func(context.Context, Track) (Concrete, error) {
		called = true
		return Concrete{}, nil
	}))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if called {
		t.Error("finder should not be called for a resolved track")
	}
	if got.Title() != "Done" {
		t.Errorf("Title() = %q, want %q", got.Title(), "Done")
	}
}

func TestTrack_Accessors(t *testing.T) {
	u := NewUnresolved(Placeholder{Title: "T", Author: "A", Duration: time.Second, URI: "U", Thumbnail: "P"}, nil)
	if u.State() != StateUnresolved || u.State().String() != "unresolved" {
		t.Errorf("State() = %v, want unresolved", u.State())
	}
	if u.Title() != "T" || u.Author() != "A" || u.Duration() != time.Second || u.URI() != "U" || u.Thumbnail() != "P" {
		t.Errorf("unexpected accessor values for %+v", u)
	}
	if _, ok := u.Concrete(); ok {
		t.Error("Concrete() should not succeed on an unresolved track")
	}

	r := NewResolved(Concrete{Title: "T2", Author: "A2"}, nil)
	if r.State().String() != "resolved" || r.Title() != "T2" || r.Author() != "A2" {
		t.Errorf("unexpected accessor values for %+v", r)
	}
	if _, ok := r.Placeholder(); ok {
		t.Error("Placeholder() should not succeed on a resolved track")
	}
}

func TestException_Error(t *testing.T) {
	err := error(&Exception{Message: "boom", Severity: SeverityFault})
	if err.Error() != "boom" {
		t.Errorf("Error() = %q, want %q", err.Error(), "boom")
	}
}
