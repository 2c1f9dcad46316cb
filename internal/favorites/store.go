package favorites

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hitoshi/jobfinder/internal/metrics"
)

// DefaultBuffer はアクションキューの既定の容量。
const DefaultBuffer = 64

// ErrAlreadyRunning はRunが二重に呼ばれた場合のエラー。
var ErrAlreadyRunning = errors.New("favorites store is already running")

// EffectHandler は意図アクションの副作用を実行する。Effectsが実装する。
// Startはアクションループ内で同期的に呼ばれ、返された関数は別ゴルーチンで実行される。
type EffectHandler interface {
	Start(ctx context.Context, a Action, snapshot State) func() Action
}

// Event は適用されたアクションと適用後の状態。
type Event struct {
	Action Action
	State  State
}

// Store はお気に入りの状態を保持し、アクションを1つずつ適用する。
type Store struct {
	actions chan Action
	effects EffectHandler
	logger  *slog.Logger
	metrics metrics.MetricsCollector

	state   atomic.Pointer[State]
	running atomic.Bool
	wg      sync.WaitGroup

	mu          sync.Mutex
	subscribers map[int]chan Event
	nextSubID   int
}

// NewStore はStoreの新しいインスタンスを生成する。
// bufferが0以下の場合はDefaultBufferを使う。
func NewStore(effects EffectHandler, logger *slog.Logger, collector metrics.MetricsCollector, buffer int) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.Nop()
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	s := &Store{
		actions:     make(chan Action, buffer),
		effects:     effects,
		logger:      logger,
		metrics:     collector,
		subscribers: make(map[int]chan Event),
	}
	initial := InitialState()
	s.state.Store(&initial)
	return s
}

// State は直近に公開された状態を返す。
func (s *Store) State() State {
	return *s.state.Load()
}

// Dispatch はアクションをキューに投入する。キューが満杯の場合はctxが終わるまで待つ。
func (s *Store) Dispatch(ctx context.Context, a Action) error {
	if a == nil {
		return nil
	}
	select {
	case s.actions <- a:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe は状態変化の通知を受け取るチャネルと購読解除関数を返す。
// 受信が追いつかずチャネルが満杯の場合、そのイベントは破棄される。
// Runの終了時にチャネルはクローズされる。
func (s *Store) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.mu.Unlock()

	unsubscribe := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(sub)
		}
	}
	return ch, unsubscribe
}

// Run はctxが終了するまでアクションを処理する。
// 終了時は実行中のエフェクトがすべて終わるのを待ってから戻る。
func (s *Store) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	s.logger.Debug("ストアを開始しました")
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.closeSubscribers()
			s.logger.Debug("ストアを停止しました")
			return nil
		case a := <-s.actions:
			s.apply(ctx, a)
		}
	}
}

func (s *Store) apply(ctx context.Context, a Action) {
	prev := s.State()
	next := Reduce(prev, a)
	s.state.Store(&next)
	s.metrics.RecordAction(a.Type())
	s.publish(Event{Action: a, State: next})

	if !IsIntent(a) {
		return
	}

	run := s.effects.Start(ctx, a, prev)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		outcome := run()
		if outcome == nil {
			return
		}
		select {
		case s.actions <- outcome:
		case <-ctx.Done():
		}
	}()
}

func (s *Store) publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			s.logger.Warn("購読者のバッファが満杯のためイベントを破棄しました",
				slog.Int("subscriber", id),
				slog.String("action", ev.Action.Type()),
			)
		}
	}
}

func (s *Store) closeSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
}

// OutcomeOf は意図アクションに対応する最終結果アクションを判定する関数を返す。
// 追加は求人ID、削除はお気に入りIDで対応付ける。
func OutcomeOf(intent Action) func(Action) bool {
	switch in := intent.(type) {
	case LoadFavorites:
		return func(a Action) bool {
			switch a := a.(type) {
			case LoadFavoritesSuccess:
				return a.UserID == in.UserID
			case LoadFavoritesFailure:
				return true
			}
			return false
		}
	case AddFavorite:
		offerID := in.Favorite.OfferID
		return func(a Action) bool {
			switch a := a.(type) {
			case AddFavoriteSuccess:
				return a.Favorite.OfferID == offerID
			case AddFavoriteDuplicate:
				return a.OfferID == offerID
			case AddFavoriteFailure:
				return a.OfferID == offerID
			}
			return false
		}
	case RemoveFavorite:
		return func(a Action) bool {
			switch a := a.(type) {
			case RemoveFavoriteSuccess:
				return a.FavoriteID == in.FavoriteID
			case RemoveFavoriteFailure:
				return a.FavoriteID == in.FavoriteID
			}
			return false
		}
	default:
		return func(Action) bool { return false }
	}
}

// ErrStoreStopped はイベント待ちの間にストアが停止した場合のエラー。
var ErrStoreStopped = errors.New("favorites store stopped")

// WaitFor はmatchを満たすイベントを受信するまで待つ。
func WaitFor(ctx context.Context, events <-chan Event, match func(Action) bool) (Event, error) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return Event{}, ErrStoreStopped
			}
			if match(ev.Action) {
				return ev, nil
			}
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}
