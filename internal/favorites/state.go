package favorites

import "github.com/hitoshi/jobfinder/internal/model"

// State はお気に入りスライスの状態。
// Reduceは入力のスライスを書き換えないため、公開されたStateは不変として扱える。
type State struct {
	// Items はお気に入り一覧。追加成功分は先頭に入る。
	Items []model.FavoriteOffer
	// Loading は一覧の読み込み中かどうか。
	Loading bool
	// Error は直近のエラーメッセージ。空はエラーなし。
	Error string
	// LoadedUserID は一覧を読み込んだユーザー。未読み込みは空。
	LoadedUserID model.ID
	// AddingOfferIDs は追加処理中の求人ID（重複なし、投入順）。
	AddingOfferIDs []model.ID
	// RemovingFavoriteIDs は削除処理中のお気に入りID（重複なし、投入順）。
	RemovingFavoriteIDs []model.ID
}

// InitialState は初期状態を返す。
func InitialState() State {
	return State{}
}

func containsID(ids []model.ID, id model.ID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// addUnique はidを含まない場合のみ末尾に追加した新しいスライスを返す。
func addUnique(ids []model.ID, id model.ID) []model.ID {
	if containsID(ids, id) {
		return ids
	}
	out := make([]model.ID, 0, len(ids)+1)
	out = append(out, ids...)
	return append(out, id)
}

// removeValue はidを除いた新しいスライスを返す。
func removeValue(ids []model.ID, id model.ID) []model.ID {
	if !containsID(ids, id) {
		return ids
	}
	out := make([]model.ID, 0, len(ids)-1)
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
