// Package remotetest はjson-server互換のインメモリAPIサーバーを提供する。
// remoteパッケージやストアの結合テストで、実サーバーの代わりに使用する。
package remotetest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// IDMode はサーバーが採番するIDの形式を表す。
type IDMode int

const (
	// NumericIDs はコレクションごとの連番（JSON数値）で採番する。
	NumericIDs IDMode = iota
	// UUIDIDs はUUID文字列で採番する。
	UUIDIDs
)

// Record はコレクション内の1レコード。数値はjson.Numberとして保持する。
type Record map[string]any

// Request はサーバーが受け付けたリクエストの記録。
type Request struct {
	Method     string
	Collection string
	ID         string
	Query      url.Values
	Body       []byte
}

// Gate は特定のリクエストを保留させる。
// Entered は最初のリクエストが到達した時点でクローズされ、
// Release を呼ぶまで到達したリクエストは応答しない。
type Gate struct {
	entered     chan struct{}
	release     chan struct{}
	enterOnce   sync.Once
	releaseOnce sync.Once
}

// Entered は保留対象のリクエストが到達したことを通知するチャネルを返す。
func (g *Gate) Entered() <-chan struct{} {
	return g.entered
}

// Release は保留中および以降のリクエストを通過させる。
func (g *Gate) Release() {
	g.releaseOnce.Do(func() { close(g.release) })
}

type routeKey struct {
	method     string
	collection string
}

// Server はjson-server互換のテスト用サーバー。
type Server struct {
	httpServer *httptest.Server
	mode       IDMode

	mu          sync.Mutex
	collections map[string][]Record
	failures    map[routeKey][]int
	gates       map[routeKey]*Gate
	requests    []Request
}

// NewServer はテスト用サーバーを起動する。利用後はCloseを呼ぶこと。
func NewServer(mode IDMode) *Server {
	s := &Server{
		mode:        mode,
		collections: make(map[string][]Record),
		failures:    make(map[routeKey][]int),
		gates:       make(map[routeKey]*Gate),
	}
	s.httpServer = httptest.NewServer(s.routes())
	return s
}

// URL はサーバーのベースURLを返す。
func (s *Server) URL() string {
	return s.httpServer.URL
}

// Client はサーバーに接続するHTTPクライアントを返す。
func (s *Server) Client() *http.Client {
	return s.httpServer.Client()
}

// Close はサーバーを停止する。保留中のゲートは全て解放する。
func (s *Server) Close() {
	s.mu.Lock()
	for _, g := range s.gates {
		g.Release()
	}
	s.mu.Unlock()
	s.httpServer.Close()
}

// Seed はコレクションにレコードを追加する。idを持たないレコードには採番する。
// recordsは構造体でもmapでもよく、JSONとして往復させて保持する。
func (s *Server) Seed(collection string, records ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		rec, err := toRecord(r)
		if err != nil {
			panic(fmt.Sprintf("remotetest: seed %s: %v", collection, err))
		}
		if isEmptyID(rec["id"]) {
			rec["id"] = s.nextIDLocked(collection)
		}
		s.collections[collection] = append(s.collections[collection], rec)
	}
}

// Records はコレクションの現在のレコードのコピーを保持順で返す。
func (s *Server) Records(collection string) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, 0, len(s.collections[collection]))
	for _, rec := range s.collections[collection] {
		out = append(out, cloneRecord(rec))
	}
	return out
}

// FailNext は次の該当リクエストを指定ステータスで失敗させる。
// 複数回呼ぶと呼んだ順に消費される。
func (s *Server) FailNext(method, collection string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := routeKey{method: method, collection: collection}
	s.failures[k] = append(s.failures[k], status)
}

// Block は該当リクエストを保留させるGateを返す。
func (s *Server) Block(method, collection string) *Gate {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := &Gate{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	s.gates[routeKey{method: method, collection: collection}] = g
	return g
}

// Requests は該当するメソッド・コレクションへのリクエスト記録を返す。
func (s *Server) Requests(method, collection string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Request
	for _, r := range s.requests {
		if r.Method == method && r.Collection == collection {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.intercept)

	r.Route("/{collection}", func(r chi.Router) {
		r.Get("/", s.list)
		r.Post("/", s.create)
		r.Get("/{id}", s.get)
		r.Patch("/{id}", s.patch)
		r.Delete("/{id}", s.remove)
	})

	return r
}

// intercept はリクエストを記録し、登録済みのゲートと失敗注入を適用する。
func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		req := Request{
			Method:     r.Method,
			Collection: segments[0],
			Query:      r.URL.Query(),
			Body:       body,
		}
		if len(segments) > 1 {
			req.ID = segments[1]
		}
		k := routeKey{method: r.Method, collection: req.Collection}

		s.mu.Lock()
		s.requests = append(s.requests, req)
		gate := s.gates[k]
		s.mu.Unlock()

		if gate != nil {
			gate.enterOnce.Do(func() { close(gate.entered) })
			select {
			case <-gate.release:
			case <-r.Context().Done():
				return
			}
		}

		s.mu.Lock()
		var status int
		if queue := s.failures[k]; len(queue) > 0 {
			status = queue[0]
			s.failures[k] = queue[1:]
		}
		s.mu.Unlock()

		if status != 0 {
			writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	query := r.URL.Query()

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, 0)
	for _, rec := range s.collections[collection] {
		if matches(rec, query) {
			out = append(out, rec)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(collection, id)
	if idx < 0 {
		writeJSON(w, http.StatusNotFound, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, s.collections[collection][idx])
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	rec, err := decodeRecord(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if isEmptyID(rec["id"]) {
		rec["id"] = s.nextIDLocked(collection)
	}
	s.collections[collection] = append(s.collections[collection], rec)
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) patch(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	id := chi.URLParam(r, "id")

	changes, err := decodeRecord(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(collection, id)
	if idx < 0 {
		writeJSON(w, http.StatusNotFound, map[string]any{})
		return
	}
	rec := s.collections[collection][idx]
	for k, v := range changes {
		if k == "id" {
			continue
		}
		rec[k] = v
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(collection, id)
	if idx < 0 {
		writeJSON(w, http.StatusNotFound, map[string]any{})
		return
	}
	records := s.collections[collection]
	s.collections[collection] = append(records[:idx:idx], records[idx+1:]...)
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) indexLocked(collection, id string) int {
	for i, rec := range s.collections[collection] {
		if fmt.Sprint(rec["id"]) == id {
			return i
		}
	}
	return -1
}

// nextIDLocked はIDModeに従って次のIDを返す。
func (s *Server) nextIDLocked(collection string) any {
	if s.mode == UUIDIDs {
		return uuid.NewString()
	}
	maxID := 0
	for _, rec := range s.collections[collection] {
		if n, err := strconv.Atoi(fmt.Sprint(rec["id"])); err == nil && n > maxID {
			maxID = n
		}
	}
	return json.Number(strconv.Itoa(maxID + 1))
}

// matches はjson-serverと同様に、クエリの各フィールドが文字列表現で一致するかを判定する。
// "_" で始まるキーはページング等の予約パラメータとして無視する。
func matches(rec Record, query url.Values) bool {
	for key, values := range query {
		if strings.HasPrefix(key, "_") {
			continue
		}
		got := fmt.Sprint(rec[key])
		ok := false
		for _, v := range values {
			if got == v {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func isEmptyID(v any) bool {
	return v == nil || fmt.Sprint(v) == ""
}

func toRecord(v any) (Record, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return decodeRecord(bytes.NewReader(b))
}

func decodeRecord(r io.Reader) (Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	if rec == nil {
		rec = Record{}
	}
	return rec, nil
}

func cloneRecord(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
