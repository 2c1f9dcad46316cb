package remotetest

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func doRequest(t *testing.T, s *Server, method, path, body string) (int, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.URL()+path, r)
	if err != nil {
		t.Fatalf("リクエスト作成に失敗: %v", err)
	}
	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatalf("リクエストに失敗: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, strings.TrimSpace(string(b))
}

// TestServer_CRUD は作成・一覧・取得・更新・削除の一連の動作を検証する。
func TestServer_CRUD(t *testing.T) {
	s := NewServer(NumericIDs)
	defer s.Close()

	status, body := doRequest(t, s, http.MethodPost, "/favoritesOffers", `{"userId":3,"offerId":"a"}`)
	if status != http.StatusCreated {
		t.Fatalf("POST status = %d, want 201", status)
	}
	if body != `{"id":1,"offerId":"a","userId":3}` {
		t.Errorf("POST body = %s", body)
	}

	doRequest(t, s, http.MethodPost, "/favoritesOffers", `{"userId":4,"offerId":"b"}`)

	status, body = doRequest(t, s, http.MethodGet, "/favoritesOffers?userId=3", "")
	if status != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", status)
	}
	var list []map[string]any
	if err := json.Unmarshal([]byte(body), &list); err != nil {
		t.Fatalf("一覧のデコードに失敗: %v", err)
	}
	if len(list) != 1 || list[0]["offerId"] != "a" {
		t.Errorf("list = %v, want offerId=a の1件", list)
	}

	status, _ = doRequest(t, s, http.MethodGet, "/favoritesOffers/2", "")
	if status != http.StatusOK {
		t.Errorf("GET by id status = %d, want 200", status)
	}

	status, body = doRequest(t, s, http.MethodPatch, "/favoritesOffers/2", `{"title":"x","id":99}`)
	if status != http.StatusOK || !strings.Contains(body, `"title":"x"`) || !strings.Contains(body, `"id":2`) {
		t.Errorf("PATCH = %d %s", status, body)
	}

	status, body = doRequest(t, s, http.MethodDelete, "/favoritesOffers/1", "")
	if status != http.StatusOK || body != "{}" {
		t.Errorf("DELETE = %d %s, want 200 {}", status, body)
	}
	status, _ = doRequest(t, s, http.MethodDelete, "/favoritesOffers/1", "")
	if status != http.StatusNotFound {
		t.Errorf("2回目のDELETE status = %d, want 404", status)
	}

	if n := len(s.Records("favoritesOffers")); n != 1 {
		t.Errorf("残件数 = %d, want 1", n)
	}
	if n := len(s.Requests(http.MethodPost, "favoritesOffers")); n != 2 {
		t.Errorf("POST記録数 = %d, want 2", n)
	}
}

// TestServer_UUIDIDs はUUIDモードで文字列IDが採番されることを検証する。
func TestServer_UUIDIDs(t *testing.T) {
	s := NewServer(UUIDIDs)
	defer s.Close()

	s.Seed("users", map[string]any{"email": "a@example.com"})
	records := s.Records("users")
	id, ok := records[0]["id"].(string)
	if !ok || len(id) != 36 {
		t.Errorf("id = %v, want UUID文字列", records[0]["id"])
	}
}

// TestServer_FailNext は失敗注入が1回だけ適用されることを検証する。
func TestServer_FailNext(t *testing.T) {
	s := NewServer(NumericIDs)
	defer s.Close()
	s.FailNext(http.MethodGet, "users", http.StatusServiceUnavailable)

	if status, _ := doRequest(t, s, http.MethodGet, "/users", ""); status != http.StatusServiceUnavailable {
		t.Errorf("1回目 status = %d, want 503", status)
	}
	if status, _ := doRequest(t, s, http.MethodGet, "/users", ""); status != http.StatusOK {
		t.Errorf("2回目 status = %d, want 200", status)
	}
}

// TestServer_Block はGateを解放するまで応答が保留されることを検証する。
func TestServer_Block(t *testing.T) {
	s := NewServer(NumericIDs)
	defer s.Close()
	gate := s.Block(http.MethodGet, "users")

	done := make(chan int, 1)
	go func() {
		resp, err := s.Client().Get(s.URL() + "/users")
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()

	select {
	case <-gate.Entered():
	case <-time.After(2 * time.Second):
		t.Fatal("リクエストがゲートに到達しない")
	}

	select {
	case <-done:
		t.Fatal("解放前に応答してはならない")
	case <-time.After(50 * time.Millisecond):
	}

	gate.Release()
	select {
	case status := <-done:
		if status != http.StatusOK {
			t.Errorf("status = %d, want 200", status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("解放後に応答しない")
	}
}
