package remote

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"

	"github.com/hitoshi/jobfinder/internal/model"
	"github.com/hitoshi/jobfinder/internal/security"
)

// favoritesCollection はお気に入り求人のコレクション名。
const favoritesCollection = "favoritesOffers"

// FavoritesResource はお気に入り求人コレクションへのアクセスを提供する。
// 取り込み時にスキーマ検証とテキストのサニタイズを行い、
// 作成前にはURL・プロバイダ・IDの静的検証を行う（不正な場合は通信しない）。
type FavoritesResource struct {
	client    *Client
	sanitizer security.TextSanitizerService
	logger    *slog.Logger
}

// NewFavoritesResource はFavoritesResourceの新しいインスタンスを生成する。
func NewFavoritesResource(client *Client, sanitizer security.TextSanitizerService, logger *slog.Logger) *FavoritesResource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FavoritesResource{
		client:    client,
		sanitizer: sanitizer,
		logger:    logger,
	}
}

// FetchByUser は指定ユーザーのお気に入り一覧をサーバーの返却順で取得する。
// スキーマに合わないレコードや他ユーザーのレコードは警告ログを残して除外する。
func (r *FavoritesResource) FetchByUser(ctx context.Context, userID model.ID) ([]model.FavoriteOffer, error) {
	var raw []json.RawMessage
	query := url.Values{"userId": []string{userID.String()}}
	if err := r.client.List(ctx, favoritesCollection, query, &raw); err != nil {
		return nil, err
	}

	favorites := make([]model.FavoriteOffer, 0, len(raw))
	for i, item := range raw {
		if err := validateFavoriteOffer(item); err != nil {
			r.logger.Warn("スキーマに合わないお気に入りレコードを除外しました",
				slog.Int("index", i),
				slog.String("error", err.Error()),
			)
			continue
		}

		var f model.FavoriteOffer
		if err := json.Unmarshal(item, &f); err != nil {
			r.logger.Warn("お気に入りレコードのデコードに失敗しました",
				slog.Int("index", i),
				slog.String("error", err.Error()),
			)
			continue
		}

		// json-serverのフィルタは値の型を区別しない実装があるため、正規化後のIDで再確認する
		if f.UserID != userID {
			continue
		}
		favorites = append(favorites, r.sanitize(f))
	}

	return favorites, nil
}

// Create はお気に入りを作成し、サーバー採番IDを含むレコードを返す。
func (r *FavoritesResource) Create(ctx context.Context, draft model.FavoriteDraft) (model.FavoriteOffer, error) {
	if err := validateDraft(draft); err != nil {
		return model.FavoriteOffer{}, err
	}
	draft = r.sanitizeDraft(draft)

	var raw json.RawMessage
	if err := r.client.Create(ctx, favoritesCollection, draft, &raw); err != nil {
		return model.FavoriteOffer{}, err
	}
	if err := validateFavoriteOffer(raw); err != nil {
		r.logger.Error("作成したお気に入りの応答がスキーマに合いません",
			slog.String("offer_id", draft.OfferID.String()),
			slog.String("error", err.Error()),
		)
		return model.FavoriteOffer{}, model.NewInvalidPayloadError(err.Error())
	}

	var created model.FavoriteOffer
	if err := json.Unmarshal(raw, &created); err != nil {
		return model.FavoriteOffer{}, model.NewInvalidPayloadError(err.Error())
	}
	return r.sanitize(created), nil
}

// Delete は指定IDのお気に入りを削除する。
func (r *FavoritesResource) Delete(ctx context.Context, id model.ID) error {
	return r.client.Delete(ctx, favoritesCollection, id)
}

// validateDraft は作成前の静的検証を行う。
func validateDraft(d model.FavoriteDraft) error {
	switch {
	case d.UserID.IsZero():
		return model.NewInvalidFavoriteError("userId is empty")
	case d.OfferID.IsZero():
		return model.NewInvalidFavoriteError("offerId is empty")
	case !d.APISource.Valid():
		return model.NewInvalidFavoriteError("unknown apiSource " + string(d.APISource))
	}
	if err := security.ValidateOfferURL(d.URL); err != nil {
		return model.NewInvalidFavoriteError(err.Error())
	}
	return nil
}

func (r *FavoritesResource) sanitize(f model.FavoriteOffer) model.FavoriteOffer {
	f.Title = r.sanitizer.Sanitize(f.Title)
	f.Company = r.sanitizer.Sanitize(f.Company)
	f.Location = r.sanitizer.Sanitize(f.Location)
	return f
}

func (r *FavoritesResource) sanitizeDraft(d model.FavoriteDraft) model.FavoriteDraft {
	d.Title = r.sanitizer.Sanitize(d.Title)
	d.Company = r.sanitizer.Sanitize(d.Company)
	d.Location = r.sanitizer.Sanitize(d.Location)
	return d
}
