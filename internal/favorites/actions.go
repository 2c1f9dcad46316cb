// Package favorites はお気に入り求人のクライアント側状態を管理する。
//
// 状態遷移は純粋関数Reduceで表し、通信や重複確認はEffectsが担う。
// Storeは単一のゴルーチンでアクションを順に適用し、
// 意図アクション（読み込み・追加・削除）ごとにエフェクトを起動して、
// その結果アクションを再びキューへ戻す。
package favorites

import "github.com/hitoshi/jobfinder/internal/model"

// アクション種別
const (
	TypeLoadFavorites         = "[Favorites] Load Favorites"
	TypeLoadFavoritesSuccess  = "[Favorites] Load Favorites Success"
	TypeLoadFavoritesFailure  = "[Favorites] Load Favorites Failure"
	TypeAddFavorite           = "[Favorites] Add Favorite"
	TypeAddFavoriteSuccess    = "[Favorites] Add Favorite Success"
	TypeAddFavoriteDuplicate  = "[Favorites] Add Favorite Duplicate"
	TypeAddFavoriteFailure    = "[Favorites] Add Favorite Failure"
	TypeRemoveFavorite        = "[Favorites] Remove Favorite"
	TypeRemoveFavoriteSuccess = "[Favorites] Remove Favorite Success"
	TypeRemoveFavoriteFailure = "[Favorites] Remove Favorite Failure"
	TypeClearFavorites        = "[Favorites] Clear Favorites"
)

// Action はストアに投入されるアクション。
type Action interface {
	Type() string
}

// LoadFavorites はユーザーのお気に入り一覧の読み込みを要求する。
type LoadFavorites struct {
	UserID model.ID
}

// LoadFavoritesSuccess は読み込みの成功。
type LoadFavoritesSuccess struct {
	UserID    model.ID
	Favorites []model.FavoriteOffer
}

// LoadFavoritesFailure は読み込みの失敗。
type LoadFavoritesFailure struct {
	Error string
}

// AddFavorite はお気に入りの追加を要求する。
type AddFavorite struct {
	UserID   model.ID
	Favorite model.FavoriteDraft
}

// AddFavoriteSuccess は追加の成功。Favoriteはサーバー採番ID付き。
type AddFavoriteSuccess struct {
	Favorite model.FavoriteOffer
}

// AddFavoriteDuplicate は既に登録済みだったことを表す。エラーではない。
type AddFavoriteDuplicate struct {
	OfferID model.ID
}

// AddFavoriteFailure は追加の失敗。
type AddFavoriteFailure struct {
	OfferID model.ID
	Error   string
}

// RemoveFavorite はお気に入りの削除を要求する。
type RemoveFavorite struct {
	FavoriteID model.ID
}

// RemoveFavoriteSuccess は削除の成功。
type RemoveFavoriteSuccess struct {
	FavoriteID model.ID
}

// RemoveFavoriteFailure は削除の失敗。
type RemoveFavoriteFailure struct {
	FavoriteID model.ID
	Error      string
}

// ClearFavorites は状態を初期化する（ログアウト時など）。
type ClearFavorites struct{}

func (LoadFavorites) Type() string         { return TypeLoadFavorites }
func (LoadFavoritesSuccess) Type() string  { return TypeLoadFavoritesSuccess }
func (LoadFavoritesFailure) Type() string  { return TypeLoadFavoritesFailure }
func (AddFavorite) Type() string           { return TypeAddFavorite }
func (AddFavoriteSuccess) Type() string    { return TypeAddFavoriteSuccess }
func (AddFavoriteDuplicate) Type() string  { return TypeAddFavoriteDuplicate }
func (AddFavoriteFailure) Type() string    { return TypeAddFavoriteFailure }
func (RemoveFavorite) Type() string        { return TypeRemoveFavorite }
func (RemoveFavoriteSuccess) Type() string { return TypeRemoveFavoriteSuccess }
func (RemoveFavoriteFailure) Type() string { return TypeRemoveFavoriteFailure }
func (ClearFavorites) Type() string        { return TypeClearFavorites }

// Load はお気に入り一覧の読み込みアクションを生成する。
func Load(userID model.ID) Action {
	return LoadFavorites{UserID: userID}
}

// Add はお気に入り追加アクションを生成する。
func Add(userID model.ID, draft model.FavoriteDraft) Action {
	return AddFavorite{UserID: userID, Favorite: draft}
}

// Remove はお気に入り削除アクションを生成する。
func Remove(favoriteID model.ID) Action {
	return RemoveFavorite{FavoriteID: favoriteID}
}

// Clear は状態初期化アクションを生成する。
func Clear() Action {
	return ClearFavorites{}
}

// IsIntent はエフェクトの起動対象となるアクションかどうかを返す。
func IsIntent(a Action) bool {
	switch a.(type) {
	case LoadFavorites, AddFavorite, RemoveFavorite:
		return true
	default:
		return false
	}
}

// IsTerminal は意図アクションに対する最終結果のアクションかどうかを返す。
func IsTerminal(a Action) bool {
	switch a.(type) {
	case LoadFavoritesSuccess, LoadFavoritesFailure,
		AddFavoriteSuccess, AddFavoriteDuplicate, AddFavoriteFailure,
		RemoveFavoriteSuccess, RemoveFavoriteFailure:
		return true
	default:
		return false
	}
}
