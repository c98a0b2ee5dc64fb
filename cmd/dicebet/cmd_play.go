// cmd/dicebet/cmd_play.go
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jason-s-yu/dicebet/internal/auth"
	"github.com/jason-s-yu/dicebet/internal/channel"
	"github.com/jason-s-yu/dicebet/internal/game"
	"github.com/jason-s-yu/dicebet/internal/session"
	"github.com/jason-s-yu/dicebet/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Connect to the game and play from the terminal",
	Long: `Connects with the stored session and reads commands from stdin:

  /bet <amount> <even|odd>   place a bet
  /new                       start a match
  /end                       end the current match
  /wallet                    refresh the balance
  /start                     start the shared game
  /quit                      disconnect and exit

Any other line is sent as chat.`,
	Args: cobra.NoArgs,
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	sess, err := cli.store.Load(ctx)
	if errors.Is(err, session.ErrNoSession) {
		return errors.New("not logged in; run \"dicebet login <username>\" first")
	}
	if err != nil {
		return err
	}
	if err := checkToken(ctx, sess); err != nil {
		return err
	}

	logger := cli.logger.WithField("username", sess.Username)

	var metrics channel.Metrics
	if cli.cfg.MetricsAddr != "" {
		registry := prometheus.NewRegistry()
		metrics = telemetry.NewMetrics(registry, map[string]string{"username": sess.Username})
		srv := serveMetrics(cli.cfg.MetricsAddr, registry, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	out := &printer{w: cmd.OutOrStdout()}
	gs := game.NewSession(sess.Username, out.events(), logger)
	m, err := channel.New(channel.Config{
		Endpoint:      cli.cfg.WSURL,
		Credential:    sess.Token,
		Handshake:     cli.cfg.Handshake,
		ManualConnect: true,
		MaxAttempts:   cli.cfg.MaxAttempts,
		BaseDelay:     cli.cfg.ReconnectDelay,
		Handler:       gs.Handler(),
		Metrics:       metrics,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	gs.Attach(m)
	m.Connect()
	defer gs.Close()

	// cancelled on every return path, including /quit
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go scanLines(loopCtx, cmd.InOrStdin(), lines)

	for {
		select {
		case <-ctx.Done():
			out.printf("* interrupted")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			c, err := parseCommand(line)
			if err != nil {
				out.printf("! %v", err)
				continue
			}
			if c.kind == cmdQuit {
				return nil
			}
			if err := execute(gs, c); err != nil {
				out.printf("! %v", err)
			}
		}
	}
}

// checkToken refuses a JWT known to be expired. Opaque tokens pass through.
func checkToken(ctx context.Context, s session.Session) error {
	claims, err := auth.Inspect(s.Token)
	switch {
	case errors.Is(err, auth.ErrNotJWT):
		cli.logger.Debug("Session token is opaque; skipping local expiry check")
		return nil
	case err != nil:
		cli.logger.Warnf("Could not inspect session token: %v", err)
		return nil
	}
	if claims.Expired(time.Now()) {
		if err := cli.store.Clear(ctx); err != nil {
			cli.logger.Warnf("Failed to clear expired session: %v", err)
		}
		return fmt.Errorf("session for %s expired at %s; log in again", s.Username, claims.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *logrus.Entry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("Serving metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Metrics server exited: %v", err)
		}
	}()
	return srv
}

// scanLines feeds stdin lines to the play loop until input ends or ctx is
// done. A Scan blocked on the terminal returns with the next line.
func scanLines(ctx context.Context, r io.Reader, lines chan<- string) {
	defer close(lines)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		select {
		case lines <- sc.Text():
		case <-ctx.Done():
			return
		}
	}
}

type commandKind int

const (
	cmdChat commandKind = iota
	cmdBet
	cmdNewMatch
	cmdEndMatch
	cmdWallet
	cmdStart
	cmdQuit
	cmdNone
)

type command struct {
	kind   commandKind
	text   string
	amount float64
	choice game.Choice
}

// parseCommand turns one stdin line into a command. Lines not starting with
// "/" are chat; blank lines are cmdNone.
func parseCommand(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{kind: cmdNone}, nil
	}
	if !strings.HasPrefix(line, "/") {
		return command{kind: cmdChat, text: line}, nil
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/bet":
		if len(fields) != 3 {
			return command{}, errors.New("usage: /bet <amount> <even|odd>")
		}
		amount, err := strconv.ParseFloat(strings.Replace(fields[1], ",", ".", 1), 64)
		if err != nil {
			return command{}, fmt.Errorf("invalid amount %q", fields[1])
		}
		choice, err := game.ParseChoice(fields[2])
		if err != nil {
			return command{}, err
		}
		return command{kind: cmdBet, amount: amount, choice: choice}, nil
	case "/new":
		return command{kind: cmdNewMatch}, nil
	case "/end":
		return command{kind: cmdEndMatch}, nil
	case "/wallet":
		return command{kind: cmdWallet}, nil
	case "/start":
		return command{kind: cmdStart}, nil
	case "/quit", "/exit":
		return command{kind: cmdQuit}, nil
	default:
		return command{}, fmt.Errorf("unknown command %s", fields[0])
	}
}

func execute(gs *game.Session, c command) error {
	switch c.kind {
	case cmdChat:
		return gs.Chat(c.text)
	case cmdBet:
		return gs.PlaceBet(c.amount, c.choice)
	case cmdNewMatch:
		return gs.NewMatch()
	case cmdEndMatch:
		return gs.EndMatch()
	case cmdWallet:
		return gs.RequestWallet()
	case cmdStart:
		return gs.StartGame()
	}
	return nil
}

// printer serializes event output coming from the channel goroutine.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *printer) printf(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) events() game.Events {
	return game.EventFuncs{
		OnConnected:    func() { p.printf("* connected") },
		OnDisconnected: func() { p.printf("* disconnected") },
		OnBalance:      func(b float64) { p.printf("* balance: %.2f", b) },
		OnChat:         func(from, text string) { p.printf("<%s> %s", from, text) },
		OnNotice:       func(text string) { p.printf("* %s", text) },
		OnMatchStarted: func() { p.printf("* match started; place your bet") },
		OnBetSettled: func(res game.BetResult) {
			verdict := "you lost"
			if res.Won {
				verdict = "you won"
			}
			p.printf("* rolled %d (%s): %s", res.Number, res.Choice, verdict)
		},
		OnMatchEnded: func() { p.printf("* match ended") },
		OnError:      func(err error) { p.printf("! %v", err) },
	}
}
