package wire

import "testing"

func TestToken_RoundTrip(t *testing.T) {
	original := DirectorySearch{SearcherID: NewPeerID(), Keywords: []string{"rs", "txt"}, SearchID: "abc"}
	raw, err := EncodeToken(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeToken(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(DirectorySearch)
	if !ok {
		t.Fatalf("expected DirectorySearch, got %T", decoded)
	}
	if got.SearchID != original.SearchID || len(got.Keywords) != 2 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestToken_FileResponseMutualExclusion(t *testing.T) {
	data := "aGVsbG8="
	resp := FileResponse{ResponderID: NewPeerID(), RequestID: "r1", FileData: &data}
	raw, err := EncodeToken(resp)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeToken(raw)
	if err != nil {
		t.Fatal(err)
	}
	got := decoded.(FileResponse)
	if got.FileData == nil || got.Error != nil {
		t.Fatalf("expected only FileData set, got %+v", got)
	}
}

func TestControlMessage_RoundTrip(t *testing.T) {
	original := Discovery{NodeID: NewPeerID(), NodeName: "alpha", NodeAddr: "127.0.0.1:9000"}
	raw, err := EncodeControlMessage(original)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeControlMessage(raw)
	if err != nil {
		t.Fatal(err)
	}
	got := decoded.(Discovery)
	if got.NodeName != "alpha" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestMatchPattern(t *testing.T) {
	cases := []struct {
		pattern, path string
		want          bool
	}{
		{"*.rs", "baz/qux.rs", true},
		{"foo*", "foo/bar.txt", true},
		{"rs", "bar.rs", true},
		{"*.rs", "bar.txt", false},
	}
	for _, c := range cases {
		if got := MatchPattern(c.pattern, c.path); got != c.want {
			t.Errorf("MatchPattern(%q, %q) = %v, want %v", c.pattern, c.path, got, c.want)
		}
	}
}
