// Command taskflowctl is the terminal client for a taskflow server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	slacklib "github.com/slack-go/slack"
	"github.com/spf13/cobra"

	"github.com/gosuda/taskflow/internal/auth"
	"github.com/gosuda/taskflow/internal/client"
	"github.com/gosuda/taskflow/internal/config"
	"github.com/gosuda/taskflow/internal/notify"
	"github.com/gosuda/taskflow/internal/realtime"
	"github.com/gosuda/taskflow/internal/session"
)

var Version = "dev"

var errNotSignedIn = errors.New("not signed in: run `taskflowctl login` and export TASKFLOW_TOKEN")

// app carries what every subcommand needs once flags and environment are
// resolved.
type app struct {
	cfg     *config.ClientConfig
	api     *client.Client
	notices *notify.Notifier
	out     io.Writer
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, fail(err.Error()))
		cancel()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var apiURL, token string

	root := &cobra.Command{
		Use:           "taskflowctl",
		Short:         "Terminal client for taskflow kanban boards",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadClient()
			if err != nil {
				return err
			}
			if apiURL != "" {
				cfg.APIURL = apiURL
			}
			if token != "" {
				cfg.Token = token
			}
			a.setup(cfg, cmd.OutOrStdout())
			return nil
		},
	}
	root.PersistentFlags().StringVar(&apiURL, "api-url", "", "Server URL (overrides TASKFLOW_API_URL)")
	root.PersistentFlags().StringVar(&token, "token", "", "Access token (overrides TASKFLOW_TOKEN)")

	root.AddCommand(
		loginCmd(a),
		registerCmd(a),
		boardsCmd(a),
		createBoardCmd(a),
		showCmd(a),
		statsCmd(a),
		addColumnCmd(a),
		renameColumnCmd(a),
		addTaskCmd(a),
		moveCmd(a),
		archivedCmd(a),
		commentsCmd(a),
		commentCmd(a),
		membersCmd(a),
		inviteCmd(a),
		watchCmd(a),
	)
	return root
}

func (a *app) setup(cfg *config.ClientConfig, out io.Writer) {
	config.SetupLogging(cfg.Log, os.Stderr)
	a.cfg = cfg
	a.out = out
	a.api = client.New(cfg.APIURL, cfg.Token, nil)
	a.notices = notify.New(buildSinks(cfg))
}

// buildSinks registers the log sink and, when configured, the Slack sink.
func buildSinks(cfg *config.ClientConfig) *notify.Registry {
	sinks := notify.NewRegistry()
	sinks.Register("log", notify.NewLogSink(log.Logger))
	if cfg.Slack.Enabled() {
		sinks.Register("slack", notify.NewSlackSink(slacklib.New(cfg.Slack.Token), cfg.Slack.Channel))
	}
	return sinks
}

func (a *app) userID() (uuid.UUID, error) {
	if a.cfg.Token == "" {
		return uuid.Nil, errNotSignedIn
	}
	claims, err := auth.PeekClaims(a.cfg.Token)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", errNotSignedIn, err)
	}
	return claims.UserIDValue()
}

// openSession opens a board session. live subscribes to the board's change
// feed; one-shot commands skip it.
func (a *app) openSession(ctx context.Context, boardRef string, live bool, onState func(realtime.State)) (*session.BoardSession, error) {
	boardID, err := parseBoardID(boardRef)
	if err != nil {
		return nil, err
	}
	userID, err := a.userID()
	if err != nil {
		return nil, err
	}

	cfg := session.Config{
		BoardID:        boardID,
		UserID:         userID,
		API:            a.api,
		Notices:        a.notices,
		StaleTime:      a.cfg.StaleTime,
		ReconnectDelay: a.cfg.ReconnectDelay,
		OnState:        onState,
	}
	if live {
		cfg.Dialer = realtime.NewWSDialer(a.cfg.APIURL, a.cfg.Token, nil).Board(boardID)
	}
	return session.Open(ctx, cfg)
}

func (a *app) println(s string) {
	fmt.Fprintln(a.out, s)
}
