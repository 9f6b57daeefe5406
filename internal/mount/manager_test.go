package mount

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func mustWrite(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestMount_ComputesCountAndSize(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "a.txt"), "hello")
	mustWrite(t, filepath.Join(root, "b.txt"), "world!")
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	mustWrite(t, filepath.Join(root, "sub", "c.txt"), "nested")

	m := New()
	point, err := m.Mount(root, "share", false)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if point.FileCount != 3 {
		t.Fatalf("expected 3 files, got %d", point.FileCount)
	}
	if point.TotalSize != uint64(len("hello")+len("world!")+len("nested")) {
		t.Fatalf("unexpected total size %d", point.TotalSize)
	}
}

func TestMount_RejectsMissingRoot(t *testing.T) {
	m := New()
	if _, err := m.Mount(filepath.Join(t.TempDir(), "nope"), "x", false); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestMount_RejectsFileRoot(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "f.txt")
	mustWrite(t, file, "data")

	m := New()
	if _, err := m.Mount(file, "x", false); err == nil {
		t.Fatal("expected error mounting a plain file")
	}
}

func TestUnmount_RemovesMountAndTokens(t *testing.T) {
	root := t.TempDir()
	m := New()
	point, err := m.Mount(root, "share", false)
	if err != nil {
		t.Fatal(err)
	}
	tok, err := m.CreateSearchToken(point.ID, nil, nil, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Unmount(point.ID); err != nil {
		t.Fatalf("Unmount: %v", err)
	}
	if _, ok := m.MountRoot(point.ID); ok {
		t.Fatal("expected mount to be gone")
	}
	if m.ValidateToken(tok.TokenID, "anything") {
		t.Fatal("expected token to be revoked with its mount")
	}
}

func TestUnmount_UnknownMount(t *testing.T) {
	m := New()
	if err := m.Unmount("does-not-exist"); err == nil {
		t.Fatal("expected error for unknown mount")
	}
}

func TestList_DirectoriesFirstThenLexical(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "z.txt"), "1")
	mustWrite(t, filepath.Join(root, "a.txt"), "2")
	if err := os.Mkdir(filepath.Join(root, "mdir"), 0o755); err != nil {
		t.Fatal(err)
	}

	m := New()
	point, err := m.Mount(root, "share", false)
	if err != nil {
		t.Fatal(err)
	}

	entries, err := m.List(point.ID, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if !entries[0].IsDir || entries[0].Path != filepath.Join(point.CanonicalRoot, "mdir") {
		t.Fatalf("expected directory first, got %+v", entries[0])
	}
	wantA, wantZ := filepath.Join(point.CanonicalRoot, "a.txt"), filepath.Join(point.CanonicalRoot, "z.txt")
	if entries[1].Path != wantA || entries[2].Path != wantZ {
		t.Fatalf("expected lexical order for files, got %+v %+v", entries[1], entries[2])
	}
}

func TestList_RejectsTraversalOutsideMount(t *testing.T) {
	root := t.TempDir()
	m := New()
	point, err := m.Mount(root, "share", false)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.List(point.ID, "../../etc"); err == nil {
		t.Fatal("expected traversal outside the mount root to be rejected")
	}
}

func TestSearchToken_ExpiresAndValidates(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "report.txt"), "data")

	m := New()
	point, err := m.Mount(root, "share", false)
	if err != nil {
		t.Fatal(err)
	}

	tok, err := m.CreateSearchToken(point.ID, []string{"*.txt"}, []string{"read"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if !m.ValidateToken(tok.TokenID, "report.txt") {
		t.Fatal("expected pattern match to validate")
	}
	if m.ValidateToken(tok.TokenID, "report.bin") {
		t.Fatal("expected non-matching pattern to fail validation")
	}

	expired, err := m.CreateSearchToken(point.ID, nil, nil, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if m.ValidateToken(expired.TokenID, "anything") {
		t.Fatal("expected expired token to fail validation")
	}
}

func TestSearchToken_EmptyPatternsMatchNothing(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "report.txt"), "data")

	m := New()
	point, err := m.Mount(root, "share", false)
	if err != nil {
		t.Fatal(err)
	}

	tok, err := m.CreateSearchToken(point.ID, nil, []string{"read"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if m.ValidateToken(tok.TokenID, "report.txt") {
		t.Fatal("expected a token with no patterns to match nothing")
	}

	records, err := m.MetadataByToken(tok.TokenID)
	if err != nil {
		t.Fatalf("MetadataByToken: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no metadata records for a patternless token, got %+v", records)
	}
}

func TestCleanupExpiredTokens(t *testing.T) {
	root := t.TempDir()
	m := New()
	point, err := m.Mount(root, "share", false)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.CreateSearchToken(point.ID, nil, nil, -time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, err := m.CreateSearchToken(point.ID, nil, nil, time.Hour); err != nil {
		t.Fatal(err)
	}

	removed := m.CleanupExpiredTokens()
	if removed != 1 {
		t.Fatalf("expected exactly 1 expired token removed, got %d", removed)
	}
}

func TestMetadataByToken_FiltersByPattern(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "a.rs"), "fn main() {}")
	mustWrite(t, filepath.Join(root, "b.txt"), "notes")

	m := New()
	point, err := m.Mount(root, "share", false)
	if err != nil {
		t.Fatal(err)
	}
	tok, err := m.CreateSearchToken(point.ID, []string{"*.rs"}, []string{"read"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	records, err := m.MetadataByToken(tok.TokenID)
	if err != nil {
		t.Fatalf("MetadataByToken: %v", err)
	}
	if len(records) != 1 || records[0].Path != filepath.Join(point.CanonicalRoot, "a.rs") {
		t.Fatalf("expected only a.rs, got %+v", records)
	}
}

func TestAuthorize_RequiresPathUnderMount(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "f.txt"), "data")

	m := New()
	point, err := m.Mount(root, "share", false)
	if err != nil {
		t.Fatal(err)
	}

	auth, err := m.Authorize(filepath.Join(point.CanonicalRoot, "f.txt"), "read", []string{"read"})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if auth.AuthID == "" || !auth.Active {
		t.Fatalf("expected active authorization, got %+v", auth)
	}

	if _, err := m.Authorize(filepath.Join(t.TempDir(), "outside.txt"), "read", nil); err == nil {
		t.Fatal("expected authorization outside any mount to fail")
	}
}
