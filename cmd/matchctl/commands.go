package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/halisaha/teammatch/internal/app"
	"github.com/halisaha/teammatch/internal/application/command"
	"github.com/halisaha/teammatch/internal/application/query"
	"github.com/halisaha/teammatch/internal/domain/player"
	"github.com/halisaha/teammatch/internal/domain/preferences"
	"github.com/halisaha/teammatch/internal/domain/shared"
	"github.com/halisaha/teammatch/internal/infrastructure/persistence/postgres"
)

// env carries the side effects so commands can be tested without a real process.
type env struct {
	out    io.Writer
	load   func(ctx context.Context) (*app.Container, error)
	openDB func(ctx context.Context) (*postgres.Connection, error)
}

func newApp(e *env) *cli.App {
	return &cli.App{
		Name:  "matchctl",
		Usage: "operate the halı saha team matcher",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "token",
				Usage:   "session token of the player to act as",
				EnvVars: []string{"TEAMMATCH_TOKEN"},
			},
		},
		Commands: []*cli.Command{
			e.matchCommand(),
			e.prefsCommand(),
			e.favoritesCommand(),
			e.tokenCommand(),
			e.migrateCommand(),
		},
	}
}

// withContainer builds the application for the duration of one command.
func (e *env) withContainer(fn func(c *cli.Context, ctr *app.Container) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		ctr, err := e.load(c.Context)
		if err != nil {
			return err
		}
		defer ctr.Close()
		return fn(c, ctr)
	}
}

func (e *env) print(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func credential(c *cli.Context) player.Credential {
	return player.Credential(strings.TrimSpace(c.String("token")))
}

// ══════════════════════════════════════════════════════════════════════════════
// MATCH
// ══════════════════════════════════════════════════════════════════════════════

func (e *env) matchCommand() *cli.Command {
	return &cli.Command{
		Name:  "match",
		Usage: "find teammates for the session player",
		Action: e.withContainer(func(c *cli.Context, ctr *app.Container) error {
			res, err := ctr.FindTeammates.Handle(c.Context, query.FindTeammatesQuery{Credential: credential(c)})
			if err != nil && !errors.Is(err, shared.ErrStaleRun) {
				return err
			}
			return e.print(res)
		}),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PREFERENCES
// ══════════════════════════════════════════════════════════════════════════════

func (e *env) prefsCommand() *cli.Command {
	return &cli.Command{
		Name:  "prefs",
		Usage: "show and change matching preferences",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "print stored preferences or the defaults",
				Action: e.withContainer(func(c *cli.Context, ctr *app.Container) error {
					prefs, err := ctr.GetPreferences.Handle(c.Context, credential(c))
					if err != nil {
						return err
					}
					return e.print(prefs)
				}),
			},
			{
				Name:  "set",
				Usage: "save only the given fields",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "max-distance"},
					&cli.IntFlag{Name: "skill-range"},
					&cli.IntFlag{Name: "age-min"},
					&cli.IntFlag{Name: "age-max"},
					&cli.StringSliceFlag{Name: "position"},
					&cli.StringSliceFlag{Name: "time", Usage: "HH:MM-HH:MM"},
					&cli.BoolFlag{Name: "only-active"},
				},
				Action: e.withContainer(func(c *cli.Context, ctr *app.Container) error {
					patch, err := patchFromFlags(c)
					if err != nil {
						return err
					}
					prefs, err := ctr.UpdatePreferences.Handle(c.Context, command.UpdatePreferencesCommand{
						Credential: credential(c),
						Patch:      patch,
					})
					if err != nil {
						return err
					}
					return e.print(prefs)
				}),
			},
			{
				Name:      "adjust",
				Usage:     "step one field up or down",
				ArgsUsage: "<maxDistance|skillLevelRange|ageMin|ageMax> <increase|decrease>",
				Action: e.withContainer(func(c *cli.Context, ctr *app.Container) error {
					if c.NArg() != 2 {
						return cli.Exit("adjust needs a field and a direction", 2)
					}
					prefs, err := ctr.UpdatePreferences.Adjust(c.Context, command.AdjustPreferenceCommand{
						Credential: credential(c),
						Field:      preferences.Field(c.Args().Get(0)),
						Direction:  preferences.Direction(c.Args().Get(1)),
					})
					if err != nil {
						return err
					}
					return e.print(prefs)
				}),
			},
		},
	}
}

// patchFromFlags keeps unset flags out of the patch.
func patchFromFlags(c *cli.Context) (preferences.Patch, error) {
	var p preferences.Patch
	if c.IsSet("max-distance") {
		v := c.Int("max-distance")
		p.MaxDistance = &v
	}
	if c.IsSet("skill-range") {
		v := c.Int("skill-range")
		p.SkillLevelRange = &v
	}
	if c.IsSet("age-min") != c.IsSet("age-max") {
		return p, cli.Exit("--age-min and --age-max go together", 2)
	}
	if c.IsSet("age-min") {
		r := preferences.AgeRange{c.Int("age-min"), c.Int("age-max")}
		p.AgeRange = &r
	}
	for _, s := range c.StringSlice("position") {
		pos, ok := player.ParsePosition(s)
		if !ok {
			return p, cli.Exit(fmt.Sprintf("unknown position %q", s), 2)
		}
		p.PreferredPositions = append(p.PreferredPositions, pos)
	}
	if c.IsSet("time") {
		p.PreferredTimes = c.StringSlice("time")
	}
	if c.IsSet("only-active") {
		v := c.Bool("only-active")
		p.OnlyActiveUsers = &v
	}
	return p, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// FAVORITES
// ══════════════════════════════════════════════════════════════════════════════

func (e *env) favoritesCommand() *cli.Command {
	return &cli.Command{
		Name:  "favorites",
		Usage: "manage favorite players",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				ArgsUsage: "<player-id>",
				Action: e.withContainer(func(c *cli.Context, ctr *app.Container) error {
					ids, err := ctr.AddFavorite.Handle(c.Context, command.AddFavoriteCommand{
						Credential: credential(c),
						PlayerID:   strings.TrimSpace(c.Args().First()),
					})
					if err != nil {
						return err
					}
					return e.print(ids)
				}),
			},
			{
				Name: "list",
				Action: e.withContainer(func(c *cli.Context, ctr *app.Container) error {
					ids, err := ctr.GetFavorites.Handle(c.Context, credential(c))
					if err != nil {
						return err
					}
					return e.print(ids)
				}),
			},
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TOKENS & MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

func (e *env) tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "issue a session token for local testing",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Required: true},
			&cli.StringFlag{Name: "first-name"},
			&cli.StringFlag{Name: "last-name"},
			&cli.StringFlag{Name: "position"},
			&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour},
		},
		Action: e.withContainer(func(c *cli.Context, ctr *app.Container) error {
			p := player.Player{
				ID:        c.String("id"),
				FirstName: c.String("first-name"),
				LastName:  c.String("last-name"),
			}
			if s := c.String("position"); s != "" {
				pos, ok := player.ParsePosition(s)
				if !ok {
					return cli.Exit(fmt.Sprintf("unknown position %q", s), 2)
				}
				p.Position = pos
			}
			token, err := ctr.Sessions.Issue(p, c.Duration("ttl"))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(e.out, token)
			return err
		}),
	}
}

func (e *env) migrateCommand() *cli.Command {
	withMigrator := func(fn func(c *cli.Context, m *postgres.Migrator) error) cli.ActionFunc {
		return func(c *cli.Context) error {
			conn, err := e.openDB(c.Context)
			if err != nil {
				return err
			}
			defer conn.Close()
			return fn(c, postgres.NewMigrator(conn))
		}
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "manage the postgres key-value schema",
		Subcommands: []*cli.Command{
			{
				Name: "up",
				Action: withMigrator(func(c *cli.Context, m *postgres.Migrator) error {
					return m.Migrate(c.Context)
				}),
			},
			{
				Name:  "rollback",
				Usage: "revert the last applied migration",
				Action: withMigrator(func(c *cli.Context, m *postgres.Migrator) error {
					return m.Rollback(c.Context)
				}),
			},
			{
				Name: "status",
				Action: withMigrator(func(c *cli.Context, m *postgres.Migrator) error {
					status, err := m.Status(c.Context)
					if err != nil {
						return err
					}
					for _, mig := range status {
						state := "pending"
						if mig.IsApplied {
							state = "applied " + mig.AppliedAt.Format(time.RFC3339)
						}
						fmt.Fprintf(e.out, "%04d %-24s %s\n", mig.Version, mig.Name, state)
					}
					return nil
				}),
			},
		},
	}
}
