package session

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hitoshi/jobfinder/internal/model"
)

// mockUserFinder はUserFinderのテスト用モック。
type mockUserFinder struct {
	findFn func(ctx context.Context, email, password string) (*model.User, error)
	calls  []string
}

func (m *mockUserFinder) FindByCredentials(ctx context.Context, email, password string) (*model.User, error) {
	m.calls = append(m.calls, email+":"+password)
	return m.findFn(ctx, email, password)
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, nil))
}

func adaFinder() *mockUserFinder {
	return &mockUserFinder{
		findFn: func(_ context.Context, email, password string) (*model.User, error) {
			if email == "ada@example.com" && password == "secret" {
				return &model.User{ID: "7", FirstName: "Ada", Email: email}, nil
			}
			return nil, nil
		},
	}
}

// TestNewProvider_NoFile_NotLoggedIn はセッションファイルがない場合に未ログインとなることを検証する。
func TestNewProvider_NoFile_NotLoggedIn(t *testing.T) {
	var buf bytes.Buffer
	p, err := NewProvider(filepath.Join(t.TempDir(), "session.json"), adaFinder(), newTestLogger(&buf))
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if p.Current() != nil {
		t.Error("Current() は nil であるべき")
	}
	if _, ok := p.CurrentUserID(); ok {
		t.Error("CurrentUserID() は false であるべき")
	}
}

// TestProvider_Login_NormalizesAndPersists は入力の正規化と保存、再読み込みを検証する。
func TestProvider_Login_NormalizesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	finder := adaFinder()
	var buf bytes.Buffer

	p, err := NewProvider(path, finder, newTestLogger(&buf))
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	user, err := p.Login(context.Background(), "  ADA@Example.com ", " secret ")
	if err != nil {
		t.Fatalf("Login エラー: %v", err)
	}
	if user.ID != "7" {
		t.Errorf("user.ID = %s, want 7", user.ID)
	}
	if len(finder.calls) != 1 || finder.calls[0] != "ada@example.com:secret" {
		t.Errorf("calls = %v, want [ada@example.com:secret]", finder.calls)
	}

	id, ok := p.CurrentUserID()
	if !ok || id != "7" {
		t.Errorf("CurrentUserID() = (%s, %v), want (7, true)", id, ok)
	}

	// 別のProviderから読み込めること
	reloaded, err := NewProvider(path, finder, newTestLogger(&buf))
	if err != nil {
		t.Fatalf("再読み込みエラー: %v", err)
	}
	if got := reloaded.Current(); got == nil || got.FirstName != "Ada" {
		t.Errorf("reloaded.Current() = %+v, want Ada", got)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("ディレクトリ内のファイル数 = %d, want 1（一時ファイルが残っていない）", len(entries))
	}
}

// TestProvider_Login_InvalidCredentials は一致しない資格情報でINVALID_CREDENTIALSになることを検証する。
func TestProvider_Login_InvalidCredentials(t *testing.T) {
	var buf bytes.Buffer
	p, _ := NewProvider(filepath.Join(t.TempDir(), "session.json"), adaFinder(), newTestLogger(&buf))

	for _, tc := range []struct{ email, password string }{
		{"ada@example.com", "wrong"},
		{"", "secret"},
		{"ada@example.com", "   "},
	} {
		_, err := p.Login(context.Background(), tc.email, tc.password)
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidCredentials {
			t.Errorf("Login(%q, %q) err = %v, want INVALID_CREDENTIALS", tc.email, tc.password, err)
		}
	}
	if p.Current() != nil {
		t.Error("失敗後にセッションが設定されてはならない")
	}
}

// TestProvider_Login_FinderError は検索エラーがそのまま返されることを検証する。
func TestProvider_Login_FinderError(t *testing.T) {
	wantErr := model.NewNetworkError(errors.New("connection refused"))
	finder := &mockUserFinder{
		findFn: func(context.Context, string, string) (*model.User, error) {
			return nil, wantErr
		},
	}
	var buf bytes.Buffer
	p, _ := NewProvider(filepath.Join(t.TempDir(), "session.json"), finder, newTestLogger(&buf))

	if _, err := p.Login(context.Background(), "a@example.com", "x"); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

// TestProvider_Logout_RemovesFile はログアウトでセッションとファイルが消えることを検証する。
func TestProvider_Logout_RemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	var buf bytes.Buffer
	p, _ := NewProvider(path, adaFinder(), newTestLogger(&buf))

	if _, err := p.Login(context.Background(), "ada@example.com", "secret"); err != nil {
		t.Fatalf("Login エラー: %v", err)
	}
	if err := p.Logout(); err != nil {
		t.Fatalf("Logout エラー: %v", err)
	}
	if p.Current() != nil {
		t.Error("ログアウト後は未ログインであるべき")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("セッションファイルが残っている: %v", err)
	}

	// 2回目のログアウトもエラーにならない
	if err := p.Logout(); err != nil {
		t.Errorf("2回目の Logout エラー: %v", err)
	}
}

// TestNewProvider_CorruptFile_Removed は破損したファイルが削除されることを検証する。
func TestNewProvider_CorruptFile_Removed(t *testing.T) {
	for name, content := range map[string]string{
		"不正なJSON": "{not json",
		"IDなし":    `{"firstName":"Ada"}`,
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "session.json")
			if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
				t.Fatal(err)
			}

			var buf bytes.Buffer
			p, err := NewProvider(path, adaFinder(), newTestLogger(&buf))
			if err != nil {
				t.Fatalf("予期しないエラー: %v", err)
			}
			if p.Current() != nil {
				t.Error("破損ファイルは未ログインとして扱うべき")
			}
			if _, err := os.Stat(path); !os.IsNotExist(err) {
				t.Error("破損ファイルが削除されていない")
			}
		})
	}
}

// TestProvider_ConcurrentAccess は並行したログインと参照でデータ競合が起きないことを検証する。
func TestProvider_ConcurrentAccess(t *testing.T) {
	var buf bytes.Buffer
	finder := &mockUserFinder{
		findFn: func(context.Context, string, string) (*model.User, error) {
			return &model.User{ID: "1"}, nil
		},
	}
	p, _ := NewProvider(filepath.Join(t.TempDir(), "session.json"), finder, newTestLogger(&buf))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.CurrentUserID()
			p.Current()
		}()
	}
	if _, err := p.Login(context.Background(), "a@example.com", "x"); err != nil {
		t.Fatalf("Login エラー: %v", err)
	}
	wg.Wait()

	if id, ok := p.CurrentUserID(); !ok || id != "1" {
		t.Errorf("CurrentUserID() = (%s, %v), want (1, true)", id, ok)
	}
}
