package favorites

import "github.com/hitoshi/jobfinder/internal/model"

// Reduce はアクションを適用した新しい状態を返す。副作用を持たない。
// 未知のアクションに対しては状態をそのまま返す。
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case LoadFavorites:
		s.Loading = true
		s.Error = ""

	case LoadFavoritesSuccess:
		items := make([]model.FavoriteOffer, len(a.Favorites))
		copy(items, a.Favorites)
		s.Items = items
		s.LoadedUserID = a.UserID
		s.Loading = false
		s.Error = ""
		s.AddingOfferIDs = nil
		s.RemovingFavoriteIDs = nil

	case LoadFavoritesFailure:
		s.Loading = false
		s.Error = a.Error

	case AddFavorite:
		s.Error = ""
		s.AddingOfferIDs = addUnique(s.AddingOfferIDs, a.Favorite.OfferID)

	case AddFavoriteSuccess:
		if !hasOffer(s.Items, a.Favorite.OfferID) {
			items := make([]model.FavoriteOffer, 0, len(s.Items)+1)
			items = append(items, a.Favorite)
			s.Items = append(items, s.Items...)
		}
		s.AddingOfferIDs = removeValue(s.AddingOfferIDs, a.Favorite.OfferID)

	case AddFavoriteDuplicate:
		s.AddingOfferIDs = removeValue(s.AddingOfferIDs, a.OfferID)

	case AddFavoriteFailure:
		s.Error = a.Error
		s.AddingOfferIDs = removeValue(s.AddingOfferIDs, a.OfferID)

	case RemoveFavorite:
		s.Error = ""
		s.RemovingFavoriteIDs = addUnique(s.RemovingFavoriteIDs, a.FavoriteID)

	case RemoveFavoriteSuccess:
		s.Items = withoutFavorite(s.Items, a.FavoriteID)
		s.RemovingFavoriteIDs = removeValue(s.RemovingFavoriteIDs, a.FavoriteID)

	case RemoveFavoriteFailure:
		s.Error = a.Error
		s.RemovingFavoriteIDs = removeValue(s.RemovingFavoriteIDs, a.FavoriteID)

	case ClearFavorites:
		return InitialState()
	}
	return s
}

func hasOffer(items []model.FavoriteOffer, offerID model.ID) bool {
	for _, it := range items {
		if it.OfferID == offerID {
			return true
		}
	}
	return false
}

// withoutFavorite はidに一致する要素を除いた新しいスライスを返す。
func withoutFavorite(items []model.FavoriteOffer, id model.ID) []model.FavoriteOffer {
	out := make([]model.FavoriteOffer, 0, len(items))
	for _, it := range items {
		if it.ID != id {
			out = append(out, it)
		}
	}
	return out
}
