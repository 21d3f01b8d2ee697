package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func mustAdd(t *testing.T, s *Store, content string) int64 {
	t.Helper()
	id, _, err := s.Add(context.Background(), Clip{
		Content: content,
		Hash:    HashText(content),
	})
	if err != nil {
		t.Fatalf("add %q: %v", content, err)
	}
	return id
}

func TestAdd_DistinctContentMakesDistinctClips(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	idA := mustAdd(t, s, "A")
	idB := mustAdd(t, s, "B")
	if idA == idB {
		t.Fatal("distinct content must produce distinct rows")
	}
	clips, err := s.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(clips) != 2 {
		t.Fatalf("clips: got %d, want 2", len(clips))
	}
}

func TestAdd_RepeatBumpsInsteadOfDuplicating(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	id1, fresh1, err := s.Add(ctx, Clip{Content: "A", Hash: HashText("A")})
	if err != nil {
		t.Fatalf("first add: %v", err)
	}
	if !fresh1 {
		t.Error("first add: expected fresh=true")
	}

	id2, fresh2, err := s.Add(ctx, Clip{Content: "A", Hash: HashText("A")})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if fresh2 {
		t.Error("second add: expected fresh=false")
	}
	if id1 != id2 {
		t.Errorf("ids: got %d and %d, want same row", id1, id2)
	}

	c, err := s.Get(ctx, id1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c.UseCount != 2 {
		t.Errorf("use_count: got %d, want 2", c.UseCount)
	}
	clips, _ := s.List(ctx, Filter{})
	if len(clips) != 1 {
		t.Fatalf("clips: got %d, want 1", len(clips))
	}
}

func TestList_FiltersAndOrder(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	idOld := mustAdd(t, s, "oldest entry")
	mustAdd(t, s, "middle entry")
	idNew := mustAdd(t, s, "newest entry")
	s.Add(ctx, Clip{Content: "https://example.com", Hash: HashText("https://example.com"), Category: "url"})

	// Most recently used first; same-millisecond ties resolve by id.
	clips, err := s.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(clips) != 4 {
		t.Fatalf("clips: got %d, want 4", len(clips))
	}
	if clips[len(clips)-1].ID != idOld {
		t.Errorf("oldest should list last, got id %d", clips[len(clips)-1].ID)
	}

	// Pinned clips float to the top regardless of age.
	if err := s.SetPinned(ctx, idOld, true); err != nil {
		t.Fatalf("pin: %v", err)
	}
	clips, _ = s.List(ctx, Filter{})
	if clips[0].ID != idOld {
		t.Errorf("pinned first: got id %d, want %d", clips[0].ID, idOld)
	}

	// Substring search.
	clips, _ = s.List(ctx, Filter{Search: "newest"})
	if len(clips) != 1 || clips[0].ID != idNew {
		t.Errorf("search: got %d results", len(clips))
	}

	// Category filter.
	clips, _ = s.List(ctx, Filter{Category: "url"})
	if len(clips) != 1 || clips[0].Category != "url" {
		t.Errorf("category filter: got %d results", len(clips))
	}

	// Favorites filter.
	s.SetFavorite(ctx, idNew, true)
	clips, _ = s.List(ctx, Filter{Favorites: true})
	if len(clips) != 1 || clips[0].ID != idNew {
		t.Errorf("favorites filter: got %d results", len(clips))
	}

	// Limit and offset page through results.
	clips, _ = s.List(ctx, Filter{Limit: 2})
	if len(clips) != 2 {
		t.Errorf("limit: got %d results, want 2", len(clips))
	}
	clips, _ = s.List(ctx, Filter{Limit: 2, Offset: 3})
	if len(clips) != 1 {
		t.Errorf("offset: got %d results, want 1", len(clips))
	}
}

func TestTouch(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	id := mustAdd(t, s, "pasted")
	if err := s.Touch(ctx, id); err != nil {
		t.Fatalf("touch: %v", err)
	}
	c, _ := s.Get(ctx, id)
	if c.UseCount != 2 {
		t.Errorf("use_count after touch: got %d, want 2", c.UseCount)
	}
	if err := s.Touch(ctx, 999); err != ErrNotFound {
		t.Errorf("touch missing: got %v, want ErrNotFound", err)
	}
}

func TestFlags(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	id := mustAdd(t, s, "flag me")
	if err := s.SetSnippet(ctx, id, true); err != nil {
		t.Fatalf("set snippet: %v", err)
	}
	c, _ := s.Get(ctx, id)
	if !c.Snippet {
		t.Error("snippet flag: got false, want true")
	}
	if err := s.SetSnippet(ctx, id, false); err != nil {
		t.Fatalf("clear snippet: %v", err)
	}
	c, _ = s.Get(ctx, id)
	if c.Snippet {
		t.Error("snippet flag: got true, want false")
	}
	if err := s.SetPinned(ctx, 999, true); err != ErrNotFound {
		t.Errorf("flag missing: got %v, want ErrNotFound", err)
	}
}

func TestUpdateText(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	id := mustAdd(t, s, "tpyo")
	if err := s.UpdateText(ctx, id, "typo"); err != nil {
		t.Fatalf("update: %v", err)
	}
	c, _ := s.Get(ctx, id)
	if c.Content != "typo" {
		t.Errorf("content: got %q, want %q", c.Content, "typo")
	}
	if c.Hash != HashText("typo") {
		t.Error("hash must track the new content")
	}

	// Updating to content another clip already holds is rejected.
	mustAdd(t, s, "taken")
	if err := s.UpdateText(ctx, id, "taken"); !errors.Is(err, ErrHashCollision) {
		t.Errorf("collision: got %v, want ErrHashCollision", err)
	}

	// Writing the same text back to the same clip is a no-op, not a collision.
	if err := s.UpdateText(ctx, id, "typo"); err != nil {
		t.Errorf("self update: %v", err)
	}

	if err := s.UpdateText(ctx, 999, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing: got %v, want ErrNotFound", err)
	}
}

func TestMergeMetadata(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	id, _, err := s.Add(ctx, Clip{
		Content: "https://example.com", Hash: HashText("https://example.com"),
		Category: "url", Metadata: map[string]string{"url": "https://example.com", "domain": "example.com"},
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	err = s.MergeMetadata(ctx, id, map[string]string{"page_title": "Example Domain"})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	c, _ := s.Get(ctx, id)
	if c.Metadata["page_title"] != "Example Domain" {
		t.Errorf("page_title: got %q", c.Metadata["page_title"])
	}
	if c.Metadata["domain"] != "example.com" {
		t.Error("merge must keep existing keys")
	}

	if err := s.MergeMetadata(ctx, 999, map[string]string{"k": "v"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("merge missing: got %v, want ErrNotFound", err)
	}
}

func TestDelete_RemovesImageArtifacts(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	dir := t.TempDir()
	imagePath := filepath.Join(dir, "img.png")
	thumbPath := filepath.Join(dir, "img_thumb.png")
	os.WriteFile(imagePath, []byte("png"), 0o644)
	os.WriteFile(thumbPath, []byte("png"), 0o644)

	id, _, err := s.Add(ctx, Clip{
		Hash: "imagehash", Kind: KindImage, Category: "image",
		ImagePath: imagePath, ThumbPath: thumbPath,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete: got %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(imagePath); !errors.Is(err, os.ErrNotExist) {
		t.Error("image file should be removed")
	}
	if _, err := os.Stat(thumbPath); !errors.Is(err, os.ErrNotExist) {
		t.Error("thumb file should be removed")
	}

	if err := s.Delete(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete missing: got %v, want ErrNotFound", err)
	}
}

func TestClearUnpinned(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	idPin := mustAdd(t, s, "keep pinned")
	idFav := mustAdd(t, s, "keep favorite")
	mustAdd(t, s, "goes away 1")
	mustAdd(t, s, "goes away 2")
	s.SetPinned(ctx, idPin, true)
	s.SetFavorite(ctx, idFav, true)

	n, err := s.ClearUnpinned(ctx)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n != 2 {
		t.Errorf("cleared: got %d, want 2", n)
	}
	clips, _ := s.List(ctx, Filter{})
	if len(clips) != 2 {
		t.Fatalf("remaining: got %d, want 2", len(clips))
	}
	for _, c := range clips {
		if !c.Pinned && !c.Favorite {
			t.Errorf("clip %d survived without pin or favorite", c.ID)
		}
	}
}

func TestEvict_EnforcesHistoryBudget(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	if err := s.SetSetting(ctx, "max_history", "3"); err != nil {
		t.Fatalf("set budget: %v", err)
	}

	// Adds run eviction themselves, so after five inserts only the three
	// newest survive.
	ids := make([]int64, 5)
	for i, content := range []string{"one", "two", "three", "four", "five"} {
		ids[i] = mustAdd(t, s, content)
	}
	clips, err := s.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(clips) != 3 {
		t.Fatalf("clips after inserts: got %d, want 3", len(clips))
	}
	for _, c := range clips {
		if c.ID == ids[0] || c.ID == ids[1] {
			t.Errorf("old clip %d should have been evicted", c.ID)
		}
	}
}

func TestEvict_SparesPinnedAndFavorites(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	s.SetSetting(ctx, "max_history", "2")

	idPin := mustAdd(t, s, "pinned early")
	s.SetPinned(ctx, idPin, true)
	idFav := mustAdd(t, s, "favorite early")
	s.SetFavorite(ctx, idFav, true)
	idOld := mustAdd(t, s, "plain old")
	mustAdd(t, s, "plain mid")
	mustAdd(t, s, "plain new")

	// Budget counts only unpinned, unfavorited clips: of the three plain
	// ones the oldest goes, the protected two stay untouched.
	clips, _ := s.List(ctx, Filter{})
	if len(clips) != 4 {
		t.Fatalf("clips: got %d, want 4", len(clips))
	}
	for _, c := range clips {
		if c.ID == idOld {
			t.Error("oldest plain clip should have been evicted")
		}
	}
	if _, err := s.Get(ctx, idPin); err != nil {
		t.Error("pinned clip must survive eviction")
	}
	if _, err := s.Get(ctx, idFav); err != nil {
		t.Error("favorite clip must survive eviction")
	}
}

func TestEvict_RemovesVictimArtifacts(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	s.SetSetting(ctx, "max_history", "1")

	dir := t.TempDir()
	imagePath := filepath.Join(dir, "victim.png")
	os.WriteFile(imagePath, []byte("png"), 0o644)
	if _, _, err := s.Add(ctx, Clip{
		Hash: "victimhash", Kind: KindImage, Category: "image", ImagePath: imagePath,
	}); err != nil {
		t.Fatalf("add image: %v", err)
	}

	mustAdd(t, s, "newer text clip")

	clips, _ := s.List(ctx, Filter{})
	if len(clips) != 1 {
		t.Fatalf("clips: got %d, want 1", len(clips))
	}
	if _, err := os.Stat(imagePath); !errors.Is(err, os.ErrNotExist) {
		t.Error("evicted image file should be removed")
	}
}

func TestGetByHash(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	mustAdd(t, s, "findable")
	c, err := s.GetByHash(ctx, HashText("findable"))
	if err != nil {
		t.Fatalf("get by hash: %v", err)
	}
	if c.Content != "findable" {
		t.Errorf("content: got %q", c.Content)
	}
	if _, err := s.GetByHash(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing hash: got %v, want ErrNotFound", err)
	}
}
