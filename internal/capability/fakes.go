package capability

import (
	"context"
	"fmt"
)

// FakeSearcher is a minimal in-memory Searcher used in Front Door tests.
type FakeSearcher struct {
	Tracks []Track
}

func (f *FakeSearcher) Search(ctx context.Context, query string) ([]Track, error) {
	var out []Track
	for _, t := range f.Tracks {
		if t.Title == query || t.Artist == query {
			out = append(out, t)
		}
	}
	return out, nil
}

// FakeMetadataProvider is a minimal in-memory MetadataProvider.
type FakeMetadataProvider struct {
	ByID map[string]Track
}

func (f *FakeMetadataProvider) GetTrack(ctx context.Context, id string) (*Track, error) {
	t, ok := f.ByID[id]
	if !ok {
		return nil, fmt.Errorf("track %q not found", id)
	}
	return &t, nil
}

// FakePlayback is a minimal in-memory Playback whose state is a current
// track id and a playing flag.
type FakePlayback struct {
	CurrentTrackID string
	Playing        bool
}

func (f *FakePlayback) Play(ctx context.Context, trackID string) error {
	f.CurrentTrackID = trackID
	f.Playing = true
	return nil
}

func (f *FakePlayback) Pause(ctx context.Context) error {
	f.Playing = false
	return nil
}

func (f *FakePlayback) Next(ctx context.Context) error { return nil }

func (f *FakePlayback) Previous(ctx context.Context) error { return nil }

func (f *FakePlayback) State(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{
		"trackId": f.CurrentTrackID,
		"playing": f.Playing,
	}, nil
}

// FakeLibraryBridge is a minimal in-memory LibraryBridge.
type FakeLibraryBridge struct {
	Playlists []string
}

func (f *FakeLibraryBridge) ListPlaylists(ctx context.Context) ([]string, error) {
	return f.Playlists, nil
}
