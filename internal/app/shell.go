package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hitoshi/jobfinder/internal/favorites"
	"github.com/hitoshi/jobfinder/internal/model"
)

const shellHelp = `commands:
  load                               お気に入りを再読み込みする
  list                               現在のお気に入りを表示する
  add <source> <offer-id> <url> [title]  お気に入りに追加する
  remove <favorite-id>               お気に入りを削除する
  clear                              ローカルの状態を初期化する
  help                               このヘルプを表示する
  quit                               終了する`

func newShellCommand(rt func() *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session with a long-lived favorites store",
		Long: `shell keeps one favorites store running and reads commands from stdin.
Several adds and removes can be in flight at once; results are printed as they arrive.
When METRICS_ADDR is set, Prometheus metrics are served on /metrics while the shell runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := rt()
			return r.withStore(cmd.Context(), true, func(ctx context.Context, store *favorites.Store) error {
				sh := &shell{
					rt:    r,
					store: store,
					out:   cmd.OutOrStdout(),
				}
				return sh.run(ctx, cmd.InOrStdin())
			})
		},
	}
}

// shell は標準入力から1行ずつコマンドを読み、ストアへ投入する。
type shell struct {
	rt    *runtime
	store *favorites.Store
	out   io.Writer

	// dispatched は投入した意図アクションの数、applied は通知で確認した適用済みの数。
	dispatched int
	applied    int
	// last は最後に受け取った通知の状態。
	last favorites.State
}

func (sh *shell) run(ctx context.Context, in io.Reader) error {
	events, unsubscribe := sh.store.Subscribe(256)
	defer unsubscribe()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	if userID, ok := sh.rt.session.CurrentUserID(); ok {
		if err := sh.dispatch(ctx, favorites.Load(userID)); err != nil {
			return err
		}
	}

	for lines != nil {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			sh.handleEvent(ev)
		case line, ok := <-lines:
			if !ok {
				lines = nil
				break
			}
			quit, err := sh.execute(ctx, line)
			if err != nil {
				return err
			}
			if quit {
				lines = nil
			}
		}
	}

	// 入力の終了後、処理中の操作がすべて終わるまで結果を表示する
	for !sh.idle() {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			sh.handleEvent(ev)
		}
	}
	return nil
}

// idle は投入したアクションがすべて適用され、処理中の操作がないかを返す。
func (sh *shell) idle() bool {
	if sh.applied < sh.dispatched {
		return false
	}
	s := sh.last
	return !s.Loading && len(s.AddingOfferIDs) == 0 && len(s.RemovingFavoriteIDs) == 0
}

func (sh *shell) dispatch(ctx context.Context, a favorites.Action) error {
	if err := sh.store.Dispatch(ctx, a); err != nil {
		return err
	}
	if favorites.IsIntent(a) {
		sh.dispatched++
	}
	return nil
}

// execute は1行分のコマンドを実行する。quitの場合はtrueを返す。
func (sh *shell) execute(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	switch fields[0] {
	case "quit", "exit":
		return true, nil

	case "help":
		fmt.Fprintln(sh.out, shellHelp)

	case "list":
		printFavorites(sh.out, favorites.Select(sh.store, favorites.SelectItems))

	case "load":
		userID, ok := sh.rt.session.CurrentUserID()
		if !ok {
			fmt.Fprintln(sh.out, errNotLoggedIn.Error())
			return false, nil
		}
		return false, sh.dispatch(ctx, favorites.Load(userID))

	case "add":
		if len(fields) < 4 {
			fmt.Fprintln(sh.out, "usage: add <source> <offer-id> <url> [title]")
			return false, nil
		}
		userID, _ := sh.rt.session.CurrentUserID()
		draft := model.FavoriteDraft{
			UserID:    userID,
			APISource: model.Source(fields[1]),
			OfferID:   model.ID(fields[2]),
			URL:       fields[3],
			Title:     strings.Join(fields[4:], " "),
		}
		if favorites.Select(sh.store, favorites.SelectIsAddingFavorite(draft.OfferID)) {
			fmt.Fprintf(sh.out, "追加処理中です: offer=%s\n", draft.OfferID)
		}
		return false, sh.dispatch(ctx, favorites.Add(userID, draft))

	case "remove":
		if len(fields) != 2 {
			fmt.Fprintln(sh.out, "usage: remove <favorite-id>")
			return false, nil
		}
		id := model.ID(fields[1])
		if favorites.Select(sh.store, favorites.SelectIsRemovingFavorite(id)) {
			fmt.Fprintf(sh.out, "削除処理中です: id=%s\n", id)
			return false, nil
		}
		return false, sh.dispatch(ctx, favorites.Remove(id))

	case "clear":
		return false, sh.dispatch(ctx, favorites.Clear())

	default:
		fmt.Fprintf(sh.out, "unknown command: %s (help で一覧を表示)\n", fields[0])
	}
	return false, nil
}

// handleEvent は結果アクションを表示する。
func (sh *shell) handleEvent(ev favorites.Event) {
	sh.last = ev.State
	if favorites.IsIntent(ev.Action) {
		sh.applied++
		return
	}

	switch a := ev.Action.(type) {
	case favorites.LoadFavoritesSuccess:
		fmt.Fprintf(sh.out, "%d 件のお気に入りを読み込みました\n", len(a.Favorites))
	case favorites.LoadFavoritesFailure:
		fmt.Fprintf(sh.out, "読み込みに失敗しました: %s\n", a.Error)
	case favorites.AddFavoriteSuccess, favorites.AddFavoriteDuplicate:
		printAddOutcome(sh.out, a)
	case favorites.AddFavoriteFailure:
		fmt.Fprintf(sh.out, "追加に失敗しました: offer=%s: %s\n", a.OfferID, a.Error)
	case favorites.RemoveFavoriteSuccess:
		printRemoveOutcome(sh.out, a)
	case favorites.RemoveFavoriteFailure:
		fmt.Fprintf(sh.out, "削除に失敗しました: id=%s: %s\n", a.FavoriteID, a.Error)
	case favorites.ClearFavorites:
		fmt.Fprintln(sh.out, "ローカルの状態を初期化しました")
	}
}
