package favorites

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hitoshi/jobfinder/internal/model"
)

func selectorState() State {
	return State{
		Items: []model.FavoriteOffer{
			fav("1", "3", "10"),
			fav("2", "3", "abc"),
			fav("3", "3", "10"),
		},
		Loading:             true,
		Error:               "x",
		AddingOfferIDs:      []model.ID{"11"},
		RemovingFavoriteIDs: []model.ID{"2"},
	}
}

// TestSelectors_Views は各ビューが状態から導出されることを検証する。
func TestSelectors_Views(t *testing.T) {
	s := selectorState()

	if got := SelectItems(s); len(got) != 3 {
		t.Errorf("SelectItems len = %d, want 3", len(got))
	}
	if !SelectLoading(s) {
		t.Error("SelectLoading = false, want true")
	}
	if got := SelectError(s); got != "x" {
		t.Errorf("SelectError = %q, want x", got)
	}
	if diff := cmp.Diff([]model.ID{"10", "abc"}, SelectFavoriteOfferIDs(s)); diff != "" {
		t.Errorf("SelectFavoriteOfferIDs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]model.ID{"11"}, SelectAddingOfferIDs(s)); diff != "" {
		t.Errorf("SelectAddingOfferIDs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]model.ID{"2"}, SelectRemovingFavoriteIDs(s)); diff != "" {
		t.Errorf("SelectRemovingFavoriteIDs mismatch (-want +got):\n%s", diff)
	}
}

// TestSelectors_ReturnCopies はセレクタの結果を変更しても状態が変わらないことを検証する。
func TestSelectors_ReturnCopies(t *testing.T) {
	s := selectorState()

	items := SelectItems(s)
	items[0].Title = "changed"
	adding := SelectAddingOfferIDs(s)
	adding[0] = "99"
	removing := SelectRemovingFavoriteIDs(s)
	removing[0] = "99"

	if diff := cmp.Diff(selectorState(), s); diff != "" {
		t.Errorf("state was modified through selector results (-want +got):\n%s", diff)
	}
}

// TestSelectors_Predicates は数値由来のIDでも判定できることを検証する。
func TestSelectors_Predicates(t *testing.T) {
	s := selectorState()
	ten, _ := model.ParseID(10)
	eleven, _ := model.ParseID(int64(11))
	two, _ := model.ParseID(uint(2))

	tests := []struct {
		name string
		sel  Selector[bool]
		want bool
	}{
		{name: "登録済み(数値)", sel: SelectIsFavoriteOffer(ten), want: true},
		{name: "登録済み(文字列)", sel: SelectIsFavoriteOffer("abc"), want: true},
		{name: "未登録", sel: SelectIsFavoriteOffer("99"), want: false},
		{name: "追加中", sel: SelectIsAddingFavorite(eleven), want: true},
		{name: "追加中でない", sel: SelectIsAddingFavorite(ten), want: false},
		{name: "削除中", sel: SelectIsRemovingFavorite(two), want: true},
		{name: "削除中でない", sel: SelectIsRemovingFavorite("1"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sel(s); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

// TestSelectors_EmptyState は初期状態で空のビューが返ることを検証する。
func TestSelectors_EmptyState(t *testing.T) {
	s := InitialState()
	if len(SelectFavoriteOfferIDs(s)) != 0 {
		t.Error("SelectFavoriteOfferIDs は空であるべき")
	}
	if SelectIsFavoriteOffer("1")(s) || SelectIsAddingFavorite("1")(s) || SelectIsRemovingFavorite("1")(s) {
		t.Error("初期状態ではすべての判定がfalseであるべき")
	}
}
