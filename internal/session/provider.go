// Package session はクライアント側のログインセッションを管理する。
// ログイン中のユーザー（パスワードを含まない公開情報）をJSONファイルに保存し、
// プロセスをまたいでセッションを維持する。
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hitoshi/jobfinder/internal/model"
)

// UserFinder は資格情報からユーザーを検索するインターフェース。
// remote.UsersResourceが実装する。見つからない場合は (nil, nil) を返す。
type UserFinder interface {
	FindByCredentials(ctx context.Context, email, password string) (*model.User, error)
}

// Provider はログインセッションを保持する。並行利用に対して安全。
type Provider struct {
	path   string
	users  UserFinder
	logger *slog.Logger

	mu      sync.RWMutex
	current *model.User
}

// NewProvider はセッションファイルを読み込んでProviderを生成する。
// ファイルが存在しない場合は未ログイン状態となる。
// 破損したファイルは削除し、未ログインとして扱う。
func NewProvider(path string, users UserFinder, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provider{
		path:   path,
		users:  users,
		logger: logger,
	}
	if err := p.load(); err != nil {
		return nil, err
	}
	return p, nil
}

// Current はログイン中のユーザーを返す。未ログインの場合はnil。
func (p *Provider) Current() *model.User {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return nil
	}
	u := *p.current
	return &u
}

// CurrentUserID はログイン中のユーザーIDを返す。未ログインの場合はfalse。
func (p *Provider) CurrentUserID() (model.ID, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil || p.current.ID.IsZero() {
		return "", false
	}
	return p.current.ID, true
}

// Login は資格情報を検証し、一致したユーザーをセッションとして保存する。
// メールアドレスは前後の空白を除き小文字に揃え、パスワードは前後の空白を除く。
func (p *Provider) Login(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	password = strings.TrimSpace(password)
	if email == "" || password == "" {
		return nil, model.NewInvalidCredentialsError()
	}

	user, err := p.users.FindByCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if user == nil {
		p.logger.Info("ログインに失敗しました", slog.String("email", email))
		return nil, model.NewInvalidCredentialsError()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.save(user); err != nil {
		return nil, err
	}
	p.current = user
	p.logger.Info("ログインしました", slog.String("user_id", user.ID.String()))

	u := *user
	return &u, nil
}

// Logout はセッションを破棄し、セッションファイルを削除する。
func (p *Provider) Logout() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = nil
	if err := os.Remove(p.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("セッションファイルの削除に失敗しました: %w", err)
	}
	return nil
}

func (p *Provider) load() error {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("セッションファイルの読み込みに失敗しました: %w", err)
	}

	var user model.User
	if err := json.Unmarshal(data, &user); err != nil || user.ID.IsZero() {
		p.logger.Warn("破損したセッションファイルを削除しました", slog.String("path", p.path))
		if rmErr := os.Remove(p.path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			return fmt.Errorf("セッションファイルの削除に失敗しました: %w", rmErr)
		}
		return nil
	}
	p.current = &user
	return nil
}

// save はユーザーを一時ファイルに書き出してからリネームする。
func (p *Provider) save(user *model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("セッションのエンコードに失敗しました: %w", err)
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("セッションディレクトリの作成に失敗しました: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("一時ファイルの作成に失敗しました: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("セッションの書き込みに失敗しました: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("セッションの書き込みに失敗しました: %w", err)
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		return fmt.Errorf("セッションファイルの更新に失敗しました: %w", err)
	}
	return nil
}
