package udpnet

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/VacuolePaoo/gatewaygui/internal/mount"
	"github.com/VacuolePaoo/gatewaygui/internal/securefile"
	"github.com/VacuolePaoo/gatewaygui/internal/wire"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	root := t.TempDir()
	mm := mount.New()
	reader := securefile.New(0, root)
	sideDir := t.TempDir()

	m, err := New("127.0.0.1:0", mm, reader, sideDir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = m.Stop() })
	return m, root
}

func TestMountDirectory_RejectsInvalidName(t *testing.T) {
	m, root := newTestManager(t)
	if _, err := m.MountDirectory("bad:name", root); err == nil {
		t.Fatal("expected invalid mount name to be rejected")
	}
	if _, err := m.MountDirectory("", root); err == nil {
		t.Fatal("expected empty mount name to be rejected")
	}
}

func TestMountDirectory_PersistsSideFile(t *testing.T) {
	m, root := newTestManager(t)
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := m.MountDirectory("docs", root); err != nil {
		t.Fatalf("MountDirectory: %v", err)
	}

	sidePath := filepath.Join(m.sideDir, "docs.index.json")
	if _, err := os.Stat(sidePath); err != nil {
		t.Fatalf("expected side index file: %v", err)
	}
}

func TestMountDirectory_RejectsDuplicateName(t *testing.T) {
	m, root := newTestManager(t)
	if _, err := m.MountDirectory("docs", root); err != nil {
		t.Fatal(err)
	}
	if _, err := m.MountDirectory("docs", root); err == nil {
		t.Fatal("expected duplicate mount name to be rejected")
	}
}

func TestUnmountDirectory_RemovesMountAndSideFile(t *testing.T) {
	m, root := newTestManager(t)
	if _, err := m.MountDirectory("docs", root); err != nil {
		t.Fatal(err)
	}
	if !m.UnmountDirectory("docs") {
		t.Fatal("expected unmount to succeed")
	}
	if m.UnmountDirectory("docs") {
		t.Fatal("expected second unmount to report false")
	}
	if len(m.MountedDirectories()) != 0 {
		t.Fatal("expected no mounted directories after unmount")
	}
}

func TestSearchFiles_MatchesAnyKeywordCaseInsensitive(t *testing.T) {
	m, root := newTestManager(t)
	if err := os.MkdirAll(filepath.Join(root, "baz"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{"foo.txt", "bar.rs", "baz/qux.rs"} {
		if err := os.WriteFile(filepath.Join(root, f), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := m.MountDirectory("docs", root); err != nil {
		t.Fatal(err)
	}

	matches := m.SearchFiles([]string{"RS"})
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d: %+v", len(matches), matches)
	}
}

func TestReadFile_RequiresPresenceInMountedIndex(t *testing.T) {
	m, root := newTestManager(t)
	if err := os.WriteFile(filepath.Join(root, "secret.txt"), []byte("s3cr3t"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := m.MountDirectory("docs", root); err != nil {
		t.Fatal(err)
	}

	b64, err := m.ReadFile(filepath.Join(root, "secret.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if b64 == "" {
		t.Fatal("expected non-empty base64 content")
	}
}

func TestSearchFiles_ResultPathIsDirectlyReadable(t *testing.T) {
	m, root := newTestManager(t)
	if err := os.MkdirAll(filepath.Join(root, "baz"), 0o755); err != nil {
		t.Fatal(err)
	}
	contents := map[string]string{
		"foo.txt":    "contents-of-foo",
		"bar.rs":     "contents-of-bar",
		"baz/qux.rs": "contents-of-qux",
	}
	for f, body := range contents {
		if err := os.WriteFile(filepath.Join(root, f), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := m.MountDirectory("docs", root); err != nil {
		t.Fatal(err)
	}

	matches := m.SearchFiles([]string{"rs"})
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d: %+v", len(matches), matches)
	}

	// A peer only ever learns the path string a DirectorySearchResponse
	// carries, which is exactly SearchFiles' own entry.Path. Feeding that
	// string straight into ReadFile must succeed (E2 -> E3), not just a
	// path the peer could never have obtained.
	for _, entry := range matches {
		b64, err := m.ReadFile(entry.Path)
		if err != nil {
			t.Fatalf("ReadFile(%q) (the exact path a search response returns): %v", entry.Path, err)
		}
		decoded, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		rel, err := filepath.Rel(root, entry.Path)
		if err != nil {
			t.Fatalf("Rel: %v", err)
		}
		want, ok := contents[filepath.ToSlash(rel)]
		if !ok {
			t.Fatalf("unexpected match path %q", entry.Path)
		}
		if string(decoded) != want {
			t.Fatalf("ReadFile(%q) = %q, want %q", entry.Path, decoded, want)
		}
	}
}

func TestListenAndBroadcast_RoundTripsToken(t *testing.T) {
	sender, root := newTestManager(t)
	receiver, _ := newTestManager(t)
	_ = root

	receiver.Start()

	tok := wire.InfoMessage{SenderID: wire.NewPeerID(), Content: "hello", MessageID: "m1"}
	if err := sender.SendTokenTo(tok, receiver.conn.LocalAddr().String()); err != nil {
		t.Fatalf("SendTokenTo: %v", err)
	}

	select {
	case ev := <-receiver.Events():
		if ev.Kind != EventTokenReceived {
			t.Fatalf("expected EventTokenReceived, got %v", ev.Kind)
		}
		info, ok := ev.Token.(wire.InfoMessage)
		if !ok || info.Content != "hello" {
			t.Fatalf("unexpected token: %+v", ev.Token)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for token event")
	}
}
