package remote

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/hitoshi/jobfinder/internal/remote/remotetest"
)

func newTestUsersResource(t *testing.T, srv *remotetest.Server) *UsersResource {
	t.Helper()
	var buf bytes.Buffer
	return NewUsersResource(NewClient(srv.Client(), newTestLogger(&buf), srv.URL()))
}

func seedUsers(srv *remotetest.Server) {
	srv.Seed("users",
		map[string]any{"id": 1, "firstName": "Ada", "lastName": "Lovelace", "email": "ada@example.com", "password": "secret"},
		map[string]any{"id": 2, "firstName": "Alan", "lastName": "Turing", "email": "alan@example.com", "password": "enigma"},
	)
}

// TestUsersResource_FindByCredentials は資格情報に一致するユーザーの検索を検証する。
func TestUsersResource_FindByCredentials(t *testing.T) {
	srv := remotetest.NewServer(remotetest.NumericIDs)
	defer srv.Close()
	seedUsers(srv)

	users := newTestUsersResource(t, srv)

	user, err := users.FindByCredentials(context.Background(), "alan@example.com", "enigma")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if user == nil {
		t.Fatal("ユーザーが見つからない")
	}
	if user.ID != "2" || user.DisplayName() != "Alan Turing" {
		t.Errorf("user = %+v", user)
	}

	user, err = users.FindByCredentials(context.Background(), "alan@example.com", "wrong")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if user != nil {
		t.Errorf("user = %+v, want nil", user)
	}
}

// TestUsersResource_FindByID は存在しないIDでnilが返されることを検証する。
func TestUsersResource_FindByID(t *testing.T) {
	srv := remotetest.NewServer(remotetest.NumericIDs)
	defer srv.Close()
	seedUsers(srv)

	users := newTestUsersResource(t, srv)

	user, err := users.FindByID(context.Background(), "1")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if user == nil || user.Email != "ada@example.com" {
		t.Errorf("user = %+v, want ada", user)
	}

	user, err = users.FindByID(context.Background(), "99")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if user != nil {
		t.Errorf("user = %+v, want nil", user)
	}
}

// TestUsersResource_FindByID_ServerError は404以外のエラーが返されることを検証する。
func TestUsersResource_FindByID_ServerError(t *testing.T) {
	srv := remotetest.NewServer(remotetest.NumericIDs)
	defer srv.Close()
	srv.FailNext(http.MethodGet, "users", http.StatusInternalServerError)

	users := newTestUsersResource(t, srv)
	if _, err := users.FindByID(context.Background(), "1"); err == nil {
		t.Fatal("エラーが返されるべき")
	}
}
