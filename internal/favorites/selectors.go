package favorites

import (
	"slices"

	"github.com/hitoshi/jobfinder/internal/model"
)

// Selector は状態から値を導出する純粋関数。
type Selector[T any] func(State) T

// Select はストアの現在の状態にセレクタを適用する。
func Select[T any](store *Store, sel Selector[T]) T {
	return sel(store.State())
}

// SelectItems はお気に入り一覧の複製を返す。
func SelectItems(s State) []model.FavoriteOffer {
	return slices.Clone(s.Items)
}

// SelectLoading は読み込み中かどうかを返す。
func SelectLoading(s State) bool {
	return s.Loading
}

// SelectError は直近のエラーメッセージを返す。
func SelectError(s State) string {
	return s.Error
}

// SelectFavoriteOfferIDs はお気に入り登録済みの求人IDを一覧順で返す。
func SelectFavoriteOfferIDs(s State) []model.ID {
	ids := make([]model.ID, 0, len(s.Items))
	for _, it := range s.Items {
		ids = addUnique(ids, it.OfferID)
	}
	return ids
}

// SelectAddingOfferIDs は追加処理中の求人IDの複製を返す。
func SelectAddingOfferIDs(s State) []model.ID {
	return slices.Clone(s.AddingOfferIDs)
}

// SelectRemovingFavoriteIDs は削除処理中のお気に入りIDの複製を返す。
func SelectRemovingFavoriteIDs(s State) []model.ID {
	return slices.Clone(s.RemovingFavoriteIDs)
}

// SelectIsFavoriteOffer は求人がお気に入り登録済みかを判定するセレクタを返す。
func SelectIsFavoriteOffer(offerID model.ID) Selector[bool] {
	return func(s State) bool {
		return hasOffer(s.Items, offerID)
	}
}

// SelectIsAddingFavorite は求人の追加が処理中かを判定するセレクタを返す。
func SelectIsAddingFavorite(offerID model.ID) Selector[bool] {
	return func(s State) bool {
		return containsID(s.AddingOfferIDs, offerID)
	}
}

// SelectIsRemovingFavorite はお気に入りの削除が処理中かを判定するセレクタを返す。
func SelectIsRemovingFavorite(favoriteID model.ID) Selector[bool] {
	return func(s State) bool {
		return containsID(s.RemovingFavoriteIDs, favoriteID)
	}
}
