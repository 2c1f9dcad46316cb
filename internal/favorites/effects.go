package favorites

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/jobfinder/internal/metrics"
	"github.com/hitoshi/jobfinder/internal/model"
)

// 失敗時のメッセージ（エラーから取り出せない場合に使用する）
const (
	loadFailedMessage   = "お気に入りを読み込めませんでした。"
	addFailedMessage    = "このオファーをお気に入りに追加できませんでした。"
	removeFailedMessage = "このお気に入りを削除できませんでした。"
)

// FavoritesResource はお気に入りのリモートリソース。
// remote.FavoritesResourceが実装する。
type FavoritesResource interface {
	FetchByUser(ctx context.Context, userID model.ID) ([]model.FavoriteOffer, error)
	Create(ctx context.Context, draft model.FavoriteDraft) (model.FavoriteOffer, error)
	Delete(ctx context.Context, id model.ID) error
}

// SessionProvider はログイン中のユーザーIDを提供する。
// session.Providerが実装する。
type SessionProvider interface {
	CurrentUserID() (model.ID, bool)
}

// Effects は意図アクションに対する通信と重複確認を行い、結果アクションを返す。
type Effects struct {
	resource FavoritesResource
	session  SessionProvider
	logger   *slog.Logger
	metrics  metrics.MetricsCollector

	mu         sync.Mutex
	loadSeq    uint64
	cancelLoad context.CancelFunc
}

// NewEffects はEffectsの新しいインスタンスを生成する。
func NewEffects(resource FavoritesResource, session SessionProvider, logger *slog.Logger, collector metrics.MetricsCollector) *Effects {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.Nop()
	}
	return &Effects{
		resource: resource,
		session:  session,
		logger:   logger,
		metrics:  collector,
	}
}

// Handle は意図アクションを処理し、結果アクションを1つ返す。
// 後発の読み込みに置き換えられた読み込みと、意図アクション以外に対してはnilを返す。
// snapshotはアクション適用前の状態で、追加時の重複確認に使う。
func (e *Effects) Handle(ctx context.Context, a Action, snapshot State) Action {
	return e.Start(ctx, a, snapshot)()
}

// Start はアクションの発行順に依存する準備（読み込みの世代管理）を同期的に行い、
// 通信を含む残りの処理を返す。Storeはアクションループ内でStartを呼び、
// 返された関数を別ゴルーチンで実行する。
func (e *Effects) Start(ctx context.Context, a Action, snapshot State) func() Action {
	switch a := a.(type) {
	case LoadFavorites:
		loadCtx, seq := e.beginLoad(ctx)
		return func() Action { return e.load(loadCtx, seq, a) }
	case AddFavorite:
		return func() Action { return e.add(ctx, a, snapshot) }
	case RemoveFavorite:
		return func() Action { return e.remove(ctx, a) }
	default:
		return func() Action { return nil }
	}
}

// beginLoad は実行中の読み込みをキャンセルし、新しい読み込みの世代を発行する。
func (e *Effects) beginLoad(ctx context.Context) (context.Context, uint64) {
	loadCtx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancelLoad != nil {
		e.cancelLoad()
	}
	e.loadSeq++
	e.cancelLoad = cancel
	return loadCtx, e.loadSeq
}

// endLoad は読み込みが最新の世代であれば後始末を行い、最新かどうかを返す。
func (e *Effects) endLoad(seq uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if seq != e.loadSeq {
		return false
	}
	e.cancelLoad()
	e.cancelLoad = nil
	return true
}

func (e *Effects) load(ctx context.Context, seq uint64, a LoadFavorites) Action {
	favorites, err := e.resource.FetchByUser(ctx, a.UserID)
	if !e.endLoad(seq) {
		e.logger.Debug("後続の読み込みにより破棄しました",
			slog.String("user_id", a.UserID.String()),
		)
		e.metrics.RecordFavoriteOutcome("load_superseded")
		return nil
	}

	if err != nil {
		msg := model.MessageOf(err, loadFailedMessage)
		e.logger.Error("お気に入りの読み込みに失敗しました",
			slog.String("user_id", a.UserID.String()),
			slog.String("error", err.Error()),
		)
		e.metrics.RecordFavoriteOutcome("load_failure")
		return LoadFavoritesFailure{Error: msg}
	}

	e.logger.Info("お気に入りを読み込みました",
		slog.String("user_id", a.UserID.String()),
		slog.Int("count", len(favorites)),
	)
	e.metrics.RecordFavoriteOutcome("load_success")
	return LoadFavoritesSuccess{UserID: a.UserID, Favorites: favorites}
}

func (e *Effects) add(ctx context.Context, a AddFavorite, snapshot State) Action {
	offerID := a.Favorite.OfferID

	// 1. セッションのユーザー、要求ユーザー、お気に入りの所有ユーザーが一致すること
	current, ok := e.session.CurrentUserID()
	if !ok || a.UserID.IsZero() || current != a.UserID || a.Favorite.UserID != a.UserID {
		e.logger.Warn("未ログインまたは別ユーザーのためお気に入りを追加できません",
			slog.String("user_id", a.UserID.String()),
			slog.String("offer_id", offerID.String()),
		)
		e.metrics.RecordFavoriteOutcome("add_unauthenticated")
		return AddFavoriteFailure{
			OfferID: offerID,
			Error:   model.MessageOf(model.NewUnauthenticatedError(), addFailedMessage),
		}
	}

	// 2. ローカル状態（登録済みまたは追加処理中）との重複確認
	if hasDuplicate(snapshot.Items, a.UserID, offerID) || containsID(snapshot.AddingOfferIDs, offerID) {
		return e.duplicate(a, "local")
	}

	// 3. 他の端末から追加された可能性があるため、サーバー側でも確認する
	existing, err := e.resource.FetchByUser(ctx, a.UserID)
	if err != nil {
		return e.addFailure(a, err)
	}
	if hasDuplicate(existing, a.UserID, offerID) {
		return e.duplicate(a, "remote")
	}

	// 4. 作成
	created, err := e.resource.Create(ctx, a.Favorite)
	if err != nil {
		return e.addFailure(a, err)
	}

	e.logger.Info("お気に入りを追加しました",
		slog.String("user_id", a.UserID.String()),
		slog.String("offer_id", offerID.String()),
		slog.String("favorite_id", created.ID.String()),
	)
	e.metrics.RecordFavoriteOutcome("add_success")
	return AddFavoriteSuccess{Favorite: created}
}

func (e *Effects) duplicate(a AddFavorite, where string) Action {
	e.logger.Info("お気に入りは登録済みです",
		slog.String("user_id", a.UserID.String()),
		slog.String("offer_id", a.Favorite.OfferID.String()),
		slog.String("checked", where),
	)
	e.metrics.RecordFavoriteOutcome("add_duplicate")
	return AddFavoriteDuplicate{OfferID: a.Favorite.OfferID}
}

func (e *Effects) addFailure(a AddFavorite, err error) Action {
	e.logger.Error("お気に入りの追加に失敗しました",
		slog.String("user_id", a.UserID.String()),
		slog.String("offer_id", a.Favorite.OfferID.String()),
		slog.String("error", err.Error()),
	)
	e.metrics.RecordFavoriteOutcome("add_failure")
	return AddFavoriteFailure{
		OfferID: a.Favorite.OfferID,
		Error:   model.MessageOf(err, addFailedMessage),
	}
}

func (e *Effects) remove(ctx context.Context, a RemoveFavorite) Action {
	if err := e.resource.Delete(ctx, a.FavoriteID); err != nil {
		e.logger.Error("お気に入りの削除に失敗しました",
			slog.String("favorite_id", a.FavoriteID.String()),
			slog.String("error", err.Error()),
		)
		e.metrics.RecordFavoriteOutcome("remove_failure")
		return RemoveFavoriteFailure{
			FavoriteID: a.FavoriteID,
			Error:      model.MessageOf(err, removeFailedMessage),
		}
	}

	e.logger.Info("お気に入りを削除しました",
		slog.String("favorite_id", a.FavoriteID.String()),
	)
	e.metrics.RecordFavoriteOutcome("remove_success")
	return RemoveFavoriteSuccess{FavoriteID: a.FavoriteID}
}

// hasDuplicate は同じユーザー・同じ求人IDのお気に入りが含まれるかを返す。
func hasDuplicate(items []model.FavoriteOffer, userID, offerID model.ID) bool {
	for _, it := range items {
		if it.OfferID == offerID && it.UserID == userID {
			return true
		}
	}
	return false
}
