package torbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"streambridge/pkg/backend"
	"streambridge/pkg/config"
	"streambridge/pkg/logger"
)

func TestParseItemID(t *testing.T) {
	tok, err := parseItemID("torrents,42,7")
	if err != nil {
		t.Fatalf("parseItemID failed: %v", err)
	}
	if tok.Kind != KindTorrents || tok.TransferID != 42 || tok.FileID != 7 {
		t.Errorf("Unexpected token %+v", tok)
	}

	bad := []string{"", "torrents", "torrents,42", "magnets,1,2", "torrents,x,2", "torrents,1,y"}
	for _, id := range bad {
		if _, err := parseItemID(id); !errors.Is(err, backend.ErrBackendRejected) {
			t.Errorf("parseItemID(%q): expected ErrBackendRejected, got %v", id, err)
		}
	}
}

func TestResolveRequestMapping(t *testing.T) {
	logger.Init("ERROR")

	cases := []struct {
		kind    string
		idParam string
	}{
		{KindTorrents, "torrent_id"},
		{KindWebDL, "web_id"},
		{KindUsenet, "usenet_id"},
	}

	for _, c := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != fmt.Sprintf("/v1/api/%s/requestdl", c.kind) {
				t.Errorf("Unexpected path %q", r.URL.Path)
			}
			q := r.URL.Query()
			if q.Get(c.idParam) != "42" {
				t.Errorf("Expected %s=42, got %q", c.idParam, q.Get(c.idParam))
			}
			if q.Get("file_id") != "7" {
				t.Errorf("Expected file_id=7, got %q", q.Get("file_id"))
			}
			if q.Get("token") != "key-1" {
				t.Errorf("Expected token param, got %q", q.Get("token"))
			}
			if r.Header.Get("Authorization") != "Bearer key-1" {
				t.Errorf("Expected bearer auth, got %q", r.Header.Get("Authorization"))
			}
			fmt.Fprint(w, `{"success": true, "data": "https://dl.torbox.app/file.mkv"}`)
		}))

		client := NewClient(config.TorboxConfig{APIKey: "key-1"})
		client.baseURL = server.URL

		token, _ := json.Marshal(resolveToken{Kind: c.kind, TransferID: 42, FileID: 7})
		stream, err := client.Resolve(context.Background(), backend.Candidate{Token: token})
		if err != nil {
			t.Fatalf("Resolve(%s) failed: %v", c.kind, err)
		}
		if stream.URL != "https://dl.torbox.app/file.mkv" {
			t.Errorf("Unexpected url %q", stream.URL)
		}
		server.Close()
	}
}

func TestResolveGoneTransferExpires(t *testing.T) {
	logger.Init("ERROR")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(config.TorboxConfig{APIKey: "key-1"})
	client.baseURL = server.URL

	token, _ := json.Marshal(resolveToken{Kind: KindTorrents, TransferID: 1, FileID: 1})
	_, err := client.Resolve(context.Background(), backend.Candidate{Token: token})
	if !errors.Is(err, backend.ErrResolutionExpired) {
		t.Errorf("Expected ErrResolutionExpired, got %v", err)
	}
}

func TestResolveEmptyDataIsMalformed(t *testing.T) {
	logger.Init("ERROR")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success": false, "detail": "not ready", "data": ""}`)
	}))
	defer server.Close()

	client := NewClient(config.TorboxConfig{APIKey: "key-1"})
	client.baseURL = server.URL

	token, _ := json.Marshal(resolveToken{Kind: KindWebDL, TransferID: 1, FileID: 1})
	_, err := client.Resolve(context.Background(), backend.Candidate{Token: token})
	if !errors.Is(err, backend.ErrMalformedResponse) {
		t.Errorf("Expected ErrMalformedResponse, got %v", err)
	}
}

func TestDescribeRestrictsToMintedIDs(t *testing.T) {
	client := NewClient(config.TorboxConfig{APIKey: "key-1"})
	d := client.Describe()

	if !d.Supports("stream", "video", "torrents,1,2") {
		t.Error("Expected minted id to be supported")
	}
	if d.Supports("stream", "movie", "tt0111161") {
		t.Error("Foreign ids must not be supported")
	}
}

func TestListCandidatesUsesFileName(t *testing.T) {
	logger.Init("ERROR")

	mux := http.NewServeMux()
	for _, kind := range transferKinds {
		mux.HandleFunc(fmt.Sprintf("/v1/api/%s/mylist", kind), func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/v1/api/torrents/mylist" {
				fmt.Fprint(w, `{"success": true, "data": [
					{"id": 42, "name": "Movie.Pack", "files": [
						{"id": 7, "short_name": "Movie.2024.1080p.mkv", "mimetype": "video/x-matroska"},
						{"id": 8, "short_name": "sample.txt", "mimetype": "text/plain"}
					]}
				]}`)
				return
			}
			fmt.Fprint(w, `{"success": true, "data": []}`)
		})
	}
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(config.TorboxConfig{APIKey: "key-1", VideoFilesOnly: true})
	client.baseURL = server.URL

	// Prime the catalog; the first advisory kicks off the fetch.
	deadlineCtx := context.Background()
	for i := 0; i < 100; i++ {
		if _, ok := client.Transfers(deadlineCtx); ok {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	transfers, ok := client.Transfers(deadlineCtx)
	if !ok {
		t.Fatal("Transfer catalog never became ready")
	}
	if len(transfers) != 1 {
		t.Fatalf("Expected 1 transfer, got %d", len(transfers))
	}
	if len(transfers[0].Files) != 1 {
		t.Errorf("Video filter should drop the text file, got %d files", len(transfers[0].Files))
	}

	cands, err := client.ListCandidates(deadlineCtx, backend.ItemRef{Kind: "video", ID: "torrents,42,7"})
	if err != nil {
		t.Fatalf("ListCandidates failed: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(cands))
	}
	if cands[0].Title != "Movie.2024.1080p.mkv" {
		t.Errorf("Expected file short name as title, got %q", cands[0].Title)
	}
	if !cands[0].Playable() {
		t.Error("Token-only candidate must be playable")
	}
}
