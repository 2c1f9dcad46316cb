// Package model はドメインモデルを定義する。
package model

// Source は求人情報の取得元プロバイダを表す。
type Source string

const (
	// SourceTheMuse は The Muse API から取得した求人。
	SourceTheMuse Source = "themuse"
	// SourceAdzuna は Adzuna API から取得した求人。
	SourceAdzuna Source = "adzuna"
)

// Valid は既知のプロバイダかどうかを返す。
func (s Source) Valid() bool {
	switch s {
	case SourceTheMuse, SourceAdzuna:
		return true
	default:
		return false
	}
}

// FavoriteOffer はユーザーがお気に入り登録した求人を表す。
// IDはリモートリソースが採番する。OfferIDは取得元プロバイダ側の求人IDであり、
// (UserID, OfferID, APISource) の組につき1件までという制約はクライアント側で担保する。
type FavoriteOffer struct {
	ID            ID     `json:"id,omitempty"`
	UserID        ID     `json:"userId"`
	OfferID       ID     `json:"offerId"`
	APISource     Source `json:"apiSource"`
	Title         string `json:"title"`
	Company       string `json:"company"`
	Location      string `json:"location"`
	URL           string `json:"url"`
	DatePublished string `json:"datePublished"`
}

// Draft はIDを除いたお気に入りデータを返す。
func (f FavoriteOffer) Draft() FavoriteDraft {
	return FavoriteDraft{
		UserID:        f.UserID,
		OfferID:       f.OfferID,
		APISource:     f.APISource,
		Title:         f.Title,
		Company:       f.Company,
		Location:      f.Location,
		URL:           f.URL,
		DatePublished: f.DatePublished,
	}
}

// FavoriteDraft は未保存（ID未採番）のお気に入りを表す。
// 作成リクエストのボディとしてそのまま送信される。
type FavoriteDraft struct {
	UserID        ID     `json:"userId"`
	OfferID       ID     `json:"offerId"`
	APISource     Source `json:"apiSource"`
	Title         string `json:"title"`
	Company       string `json:"company"`
	Location      string `json:"location"`
	URL           string `json:"url"`
	DatePublished string `json:"datePublished"`
}

// WithID はサーバー採番IDを付与したFavoriteOfferを返す。
func (d FavoriteDraft) WithID(id ID) FavoriteOffer {
	return FavoriteOffer{
		ID:            id,
		UserID:        d.UserID,
		OfferID:       d.OfferID,
		APISource:     d.APISource,
		Title:         d.Title,
		Company:       d.Company,
		Location:      d.Location,
		URL:           d.URL,
		DatePublished: d.DatePublished,
	}
}
