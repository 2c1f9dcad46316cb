package remote

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/hitoshi/jobfinder/internal/model"
)

// usersCollection はユーザーのコレクション名。
const usersCollection = "users"

// UsersResource はユーザーコレクションへのアクセスを提供する。
type UsersResource struct {
	client *Client
}

// NewUsersResource はUsersResourceの新しいインスタンスを生成する。
func NewUsersResource(client *Client) *UsersResource {
	return &UsersResource{client: client}
}

// FindByCredentials はメールアドレスとパスワードが一致するユーザーを取得する。
// 見つからない場合はnilを返す。
func (r *UsersResource) FindByCredentials(ctx context.Context, email, password string) (*model.User, error) {
	var users []model.User
	query := url.Values{
		"email":    []string{email},
		"password": []string{password},
	}
	if err := r.client.List(ctx, usersCollection, query, &users); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *UsersResource) FindByID(ctx context.Context, id model.ID) (*model.User, error) {
	var user model.User
	if err := r.client.Get(ctx, usersCollection, id, &user); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}
