package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/urfave/cli/v2"

	"github.com/sakif/portfolio-feed/internal/client"
	"github.com/sakif/portfolio-feed/internal/feed"
	"github.com/sakif/portfolio-feed/internal/model"
	"github.com/sakif/portfolio-feed/internal/repository/jsonfile"
)

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "feedctl",
		Usage:     "read and write the portfolio post feed",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Value:   "http://localhost:5000",
				Usage:   "feed API base URL",
				EnvVars: []string{"FEED_SERVER"},
			},
			&cli.StringFlag{
				Name:    "state-dir",
				Value:   ".feed",
				Usage:   "directory for the local post cache and saved session",
				EnvVars: []string{"FEED_STATE_DIR"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "error",
				Usage:   "debug, info, warn or error",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "feed",
				Usage:  "show the feed, newest first",
				Action: cmdFeed,
			},
			{
				Name:      "post",
				Usage:     "publish a post",
				ArgsUsage: "<content>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "image", Usage: "image URL or data URI"},
				},
				Action: cmdPost,
			},
			{
				Name:      "comment",
				Usage:     "comment on a post",
				ArgsUsage: "<post-id> <content>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "author", Usage: "name to show (defaults to the logged-in user)"},
				},
				Action: cmdComment,
			},
			{
				Name:      "like",
				Usage:     "toggle your like on a post (anonymous when logged out)",
				ArgsUsage: "<post-id>",
				Action:    cmdLike,
			},
			{
				Name:      "delete",
				Usage:     "delete a post",
				ArgsUsage: "<post-id>",
				Action:    cmdDelete,
			},
			{
				Name:      "register",
				Usage:     "create an account and log in",
				ArgsUsage: "<username> <password>",
				Action:    cmdRegister,
			},
			{
				Name:      "login",
				Usage:     "log in and save the session",
				ArgsUsage: "<username> <password>",
				Action:    cmdLogin,
			},
			{
				Name:   "logout",
				Usage:  "forget the saved session",
				Action: cmdLogout,
			},
			{
				Name:   "whoami",
				Usage:  "print the logged-in user",
				Action: cmdWhoami,
			},
			{
				Name:   "sync",
				Usage:  "push posts that were saved locally while offline",
				Action: cmdSync,
			},
		},
	}
}

// openSyncer builds the sync layer from the global flags.
func openSyncer(c *cli.Context) (*feed.Syncer, error) {
	api, err := client.New(c.String("server"))
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: parseLevel(c.String("log-level")),
	}))

	dir := c.String("state-dir")
	return feed.NewSyncer(api,
		jsonfile.Open[model.Post](dir, "local-posts", logger),
		jsonfile.Open[model.Session](dir, "session", logger),
		logger,
	), nil
}

func requireArgs(c *cli.Context, n int) error {
	if c.NArg() < n {
		return fmt.Errorf("%s: expected %s", c.Command.Name, c.Command.ArgsUsage)
	}
	return nil
}

func cmdFeed(c *cli.Context) error {
	s, err := openSyncer(c)
	if err != nil {
		return err
	}

	f := s.Load(c.Context)
	out := c.App.Writer
	if f.Offline {
		fmt.Fprintln(out, "(server unreachable: showing local posts only)")
	}
	if len(f.Posts) == 0 {
		fmt.Fprintln(out, "no posts yet")
		return nil
	}
	for _, p := range f.Posts {
		printPost(out, p)
	}
	return nil
}

func cmdPost(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	s, err := openSyncer(c)
	if err != nil {
		return err
	}

	content := strings.Join(c.Args().Slice(), " ")
	p, err := s.Submit(c.Context, content, c.String("image"))
	if err != nil {
		return err
	}
	if p.Local {
		fmt.Fprintf(c.App.Writer, "saved locally as %s (run `feedctl sync` once the server is reachable)\n", p.ID)
		return nil
	}
	fmt.Fprintf(c.App.Writer, "posted %s\n", p.ID)
	return nil
}

func cmdComment(c *cli.Context) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	s, err := openSyncer(c)
	if err != nil {
		return err
	}

	// Populate the view so an offline comment has a post to attach to.
	s.Load(c.Context)

	content := strings.Join(c.Args().Slice()[1:], " ")
	cm, err := s.Comment(c.Context, c.Args().First(), c.String("author"), content)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "commented %s as %s\n", cm.ID, cm.Author)
	return nil
}

func cmdLike(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	s, err := openSyncer(c)
	if err != nil {
		return err
	}

	s.Load(c.Context)
	n, err := s.Like(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%d likes\n", n)
	return nil
}

func cmdDelete(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	s, err := openSyncer(c)
	if err != nil {
		return err
	}

	if err := s.Delete(c.Context, c.Args().First()); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "deleted %s\n", c.Args().First())
	return nil
}

func cmdRegister(c *cli.Context) error {
	return authenticate(c, (*feed.Syncer).Register, "registered")
}

func cmdLogin(c *cli.Context) error {
	return authenticate(c, (*feed.Syncer).Login, "logged in")
}

type authFunc func(s *feed.Syncer, ctx context.Context, username, password string) (model.Session, error)

func authenticate(c *cli.Context, fn authFunc, verb string) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	s, err := openSyncer(c)
	if err != nil {
		return err
	}

	sess, err := fn(s, c.Context, c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		var se *client.StatusError
		if errors.As(err, &se) && se.Message != "" {
			return errors.New(se.Message)
		}
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s as %s\n", verb, sess.Username)
	return nil
}

func cmdLogout(c *cli.Context) error {
	s, err := openSyncer(c)
	if err != nil {
		return err
	}
	s.Logout(c.Context)
	fmt.Fprintln(c.App.Writer, "logged out")
	return nil
}

func cmdWhoami(c *cli.Context) error {
	s, err := openSyncer(c)
	if err != nil {
		return err
	}
	if sess, ok := s.Session(); ok {
		fmt.Fprintln(c.App.Writer, sess.Username)
		return nil
	}
	fmt.Fprintln(c.App.Writer, "not logged in")
	return nil
}

func cmdSync(c *cli.Context) error {
	s, err := openSyncer(c)
	if err != nil {
		return err
	}

	res, err := s.Replay(c.Context)
	fmt.Fprintf(c.App.Writer, "%d synced, %d still local\n", res.Confirmed, res.Failed)
	return err
}

func printPost(w io.Writer, p model.Post) {
	marker := ""
	if p.Local {
		marker = " [local]"
	}
	fmt.Fprintf(w, "%s%s  %s  %s\n", p.ID, marker, p.Author, p.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "  %s\n", p.Content)
	if p.Image != "" {
		fmt.Fprintf(w, "  image: %s\n", truncate(p.Image, 60))
	}
	fmt.Fprintf(w, "  %d likes, %d comments\n", p.Likes(), len(p.Comments))
	for _, cm := range p.Comments {
		fmt.Fprintf(w, "    %s: %s\n", cm.Author, cm.Content)
	}
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelError
	}
	return lvl
}
