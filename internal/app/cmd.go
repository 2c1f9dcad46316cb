package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hitoshi/jobfinder/internal/favorites"
	"github.com/hitoshi/jobfinder/internal/model"
)

// errNotLoggedIn はログインが必要なコマンドを未ログインで実行した場合のエラー。
var errNotLoggedIn = errors.New("ログインしていません。jobfinder login を実行してください")

// newRootCommand はコマンドツリーと、実行後に呼ぶ後始末関数を返す。
// 設定の読み込みと依存関係の組み立てはサブコマンドの実行直前に行う。
func newRootCommand(streams Streams) (*cobra.Command, func()) {
	var (
		envFile string
		rt      *runtime
	)

	root := &cobra.Command{
		Use:           "jobfinder",
		Short:         "Manage favorite job offers",
		Long:          "jobfinder keeps a list of favorite job offers on a json-server compatible API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := Init(streams.Err, envFile)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			log.Debug("starting command",
				slog.String("command", cmd.CommandPath()),
				slog.String("api_url", cfg.APIBaseURL),
			)
			rt, err = newRuntime(cfg, log)
			return err
		},
	}
	root.SetIn(streams.In)
	root.SetOut(streams.Out)
	root.SetErr(streams.Err)
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	runtimeOf := func() *runtime { return rt }

	favoritesCmd := &cobra.Command{
		Use:   "favorites",
		Short: "List, add and remove favorite offers",
	}
	favoritesCmd.AddCommand(
		newFavoritesListCommand(runtimeOf),
		newFavoritesAddCommand(runtimeOf),
		newFavoritesRemoveCommand(runtimeOf),
	)

	root.AddCommand(
		newLoginCommand(runtimeOf),
		newLogoutCommand(runtimeOf),
		newWhoamiCommand(runtimeOf),
		favoritesCmd,
		newShellCommand(runtimeOf),
	)

	cleanup := func() {
		if rt != nil {
			rt.Close()
		}
	}
	return root, cleanup
}

func newLoginCommand(rt func() *runtime) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := rt().session.Login(cmd.Context(), email, password)
			if err != nil {
				return errors.New(model.MessageOf(err, "ログインに失敗しました。"))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ログインしました: %s (id=%s)\n", user.DisplayName(), user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cobra.CheckErr(cmd.MarkFlagRequired("email"))
	cobra.CheckErr(cmd.MarkFlagRequired("password"))
	return cmd
}

func newLogoutCommand(rt func() *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt().session.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ログアウトしました")
			return nil
		},
	}
}

func newWhoamiCommand(rt func() *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user := rt().session.Current()
			if user == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "ログインしていません")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> (id=%s)\n", user.DisplayName(), user.Email, user.ID)
			return nil
		},
	}
}

func newFavoritesListCommand(rt func() *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List favorite offers of the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := rt()
			userID, ok := r.session.CurrentUserID()
			if !ok {
				return errNotLoggedIn
			}

			return r.withStore(cmd.Context(), false, func(ctx context.Context, store *favorites.Store) error {
				ev, err := dispatchAndWait(ctx, store, favorites.Load(userID))
				if err != nil {
					return err
				}
				if failure, ok := ev.Action.(favorites.LoadFavoritesFailure); ok {
					return errors.New(failure.Error)
				}
				printFavorites(cmd.OutOrStdout(), favorites.SelectItems(ev.State))
				return nil
			})
		},
	}
}

func newFavoritesAddCommand(rt func() *runtime) *cobra.Command {
	var (
		offerID string
		source  string
		draft   model.FavoriteDraft
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a job offer to favorites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := rt()
			userID, _ := r.session.CurrentUserID()

			draft.UserID = userID
			draft.OfferID = model.ID(offerID)
			draft.APISource = model.Source(source)

			return r.withStore(cmd.Context(), false, func(ctx context.Context, store *favorites.Store) error {
				// ローカルの重複確認に使うため、ログイン中であれば先に一覧を読み込む
				if !userID.IsZero() {
					if _, err := dispatchAndWait(ctx, store, favorites.Load(userID)); err != nil {
						return err
					}
				}

				ev, err := dispatchAndWait(ctx, store, favorites.Add(userID, draft))
				if err != nil {
					return err
				}
				return printAddOutcome(cmd.OutOrStdout(), ev.Action)
			})
		},
	}
	cmd.Flags().StringVar(&offerID, "offer-id", "", "offer identifier at the provider")
	cmd.Flags().StringVar(&source, "source", string(model.SourceTheMuse), "offer provider (themuse or adzuna)")
	cmd.Flags().StringVar(&draft.Title, "title", "", "offer title")
	cmd.Flags().StringVar(&draft.Company, "company", "", "company name")
	cmd.Flags().StringVar(&draft.Location, "location", "", "work location")
	cmd.Flags().StringVar(&draft.URL, "url", "", "offer page URL")
	cmd.Flags().StringVar(&draft.DatePublished, "published", "", "publication date")
	cobra.CheckErr(cmd.MarkFlagRequired("offer-id"))
	cobra.CheckErr(cmd.MarkFlagRequired("url"))
	return cmd
}

func newFavoritesRemoveCommand(rt func() *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <favorite-id>",
		Short: "Remove a favorite by its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := model.ID(args[0])
			return rt().withStore(cmd.Context(), false, func(ctx context.Context, store *favorites.Store) error {
				ev, err := dispatchAndWait(ctx, store, favorites.Remove(id))
				if err != nil {
					return err
				}
				return printRemoveOutcome(cmd.OutOrStdout(), ev.Action)
			})
		},
	}
}

// printFavorites はお気に入り一覧を表形式で出力する。
func printFavorites(w io.Writer, items []model.FavoriteOffer) {
	if len(items) == 0 {
		fmt.Fprintln(w, "お気に入りはありません")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tOFFER\tSOURCE\tTITLE\tCOMPANY\tLOCATION")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", it.ID, it.OfferID, it.APISource, it.Title, it.Company, it.Location)
	}
	tw.Flush()
}

// printAddOutcome は追加の結果を出力する。失敗の場合はエラーを返す。
func printAddOutcome(w io.Writer, a favorites.Action) error {
	switch a := a.(type) {
	case favorites.AddFavoriteSuccess:
		fmt.Fprintf(w, "お気に入りに追加しました: offer=%s id=%s\n", a.Favorite.OfferID, a.Favorite.ID)
	case favorites.AddFavoriteDuplicate:
		fmt.Fprintf(w, "既にお気に入りに登録されています: offer=%s\n", a.OfferID)
	case favorites.AddFavoriteFailure:
		return errors.New(a.Error)
	}
	return nil
}

// printRemoveOutcome は削除の結果を出力する。失敗の場合はエラーを返す。
func printRemoveOutcome(w io.Writer, a favorites.Action) error {
	switch a := a.(type) {
	case favorites.RemoveFavoriteSuccess:
		fmt.Fprintf(w, "お気に入りを削除しました: id=%s\n", a.FavoriteID)
	case favorites.RemoveFavoriteFailure:
		return errors.New(a.Error)
	}
	return nil
}
