package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"agenda/internal/calendar"
	"agenda/internal/capture"
	"agenda/internal/dayview"
	"agenda/internal/ics"
	appLog "agenda/internal/log"
	"agenda/internal/model"
	"agenda/internal/termview"
	"agenda/internal/timetext"
	"agenda/internal/web"
)

func today() string {
	return calendar.DateKey(time.Now())
}

func dayCommand() *cli.Command {
	return &cli.Command{
		Name:  "day",
		Usage: "Print the items of one day, ordered by time.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "YYYY-MM-DD (default today)"},
			&cli.IntFlag{Name: "offset", Usage: "shift the date by N days (-1 is the day before)"},
			&cli.StringFlag{Name: "category", Usage: "only this category key"},
		},
		Action: func(c *cli.Context) error {
			e, err := openEnv(c)
			if err != nil {
				return err
			}
			defer e.close()

			date := c.String("date")
			if date == "" {
				date = today()
			}
			if n := c.Int("offset"); n != 0 {
				if date, err = calendar.AddDays(date, n); err != nil {
					return err
				}
			}
			day, err := calendar.ParseDateKey(date)
			if err != nil {
				return err
			}
			rows := dayview.ForDate(e.store, date, c.String("category"))
			th := termview.ThemeFor(e.store.Theme())
			fmt.Fprintln(c.App.Writer, termview.Day(th, calendar.DisplayLabel(day, e.cfg.Locale), rows))
			return nil
		},
	}
}

func monthCommand() *cli.Command {
	return &cli.Command{
		Name:  "month",
		Usage: "Print the month grid with per-day category markers.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "month", Aliases: []string{"m"}, Usage: "YYYY-MM (default this month)"},
			&cli.StringFlag{Name: "category", Usage: "only this category key"},
			&cli.StringFlag{Name: "selected", Usage: "YYYY-MM-DD to highlight"},
		},
		Action: func(c *cli.Context) error {
			e, err := openEnv(c)
			if err != nil {
				return err
			}
			defer e.close()

			now := time.Now()
			year, month := now.Year(), now.Month()
			if m := c.String("month"); m != "" {
				if year, month, err = calendar.ParseMonth(m); err != nil {
					return err
				}
			}
			weeks := dayview.MonthCells(e.store, year, month, c.String("category"), today(), c.String("selected"))
			th := termview.ThemeFor(e.store.Theme())
			fmt.Fprintln(c.App.Writer, termview.Month(th,
				calendar.MonthLabel(year, month, e.cfg.Locale),
				calendar.WeekdayNames(e.cfg.Locale),
				weeks,
			))
			return nil
		},
	}
}

func addCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Add a schedule item. A leading HH:MM in the text sets the time.",
		ArgsUsage: "TEXT...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "YYYY-MM-DD (default today)"},
			&cli.StringFlag{Name: "category", Value: "work", Usage: "category key"},
			&cli.StringFlag{Name: "time", Aliases: []string{"t"}, Usage: "HH:MM start"},
			&cli.StringFlag{Name: "end", Usage: "HH:MM end (requires a start)"},
			&cli.StringFlag{Name: "notes", Usage: "free-form notes"},
		},
		Action: func(c *cli.Context) error {
			e, err := openEnv(c)
			if err != nil {
				return err
			}
			defer e.close()

			date := c.String("date")
			if date == "" {
				date = today()
			}
			in := model.ItemInput{
				Date:     date,
				Category: c.String("category"),
				Text:     strings.Join(c.Args().Slice(), " "),
				Time:     c.String("time"),
				End:      c.String("end"),
				Notes:    c.String("notes"),
			}
			item, err := in.ToItem()
			if err != nil {
				return err
			}
			if _, ok := e.store.Categories().Lookup(item.Category); !ok {
				appLog.Warn("unknown category; item will use the fallback color", "category", item.Category)
			}
			id, err := e.store.Create(item)
			if err != nil {
				return persistWarning(err)
			}
			label := item.Text
			if item.Time != nil {
				label = timetext.Join(timetext.ToTimeString(*item.Time), item.Text)
			}
			fmt.Fprintf(c.App.Writer, "%s  %s  %s\n", id, date, label)
			return nil
		},
	}
}

func todoCommand() *cli.Command {
	return &cli.Command{
		Name:  "todo",
		Usage: "Manage to-dos that are not yet on the calendar.",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Add a to-do.",
				ArgsUsage: "TEXT...",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "category", Value: "work", Usage: "category key"},
				},
				Action: func(c *cli.Context) error {
					e, err := openEnv(c)
					if err != nil {
						return err
					}
					defer e.close()
					td, err := e.store.CreateTodo(strings.Join(c.Args().Slice(), " "), c.String("category"))
					if err != nil {
						return persistWarning(err)
					}
					fmt.Fprintf(c.App.Writer, "%s  %s\n", td.ID, td.Text)
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "List to-dos with the stats footer.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Usage: "scheduled or unscheduled (default all)"},
				},
				Action: func(c *cli.Context) error {
					e, err := openEnv(c)
					if err != nil {
						return err
					}
					defer e.close()
					status := model.TodoStatus(c.String("status"))
					switch status {
					case "", model.TodoScheduled, model.TodoUnscheduled:
					default:
						return fmt.Errorf("unknown status %q", status)
					}
					th := termview.ThemeFor(e.store.Theme())
					fmt.Fprintln(c.App.Writer, termview.Todos(th, e.store.Todos(status), e.store.TodoStats(), e.store.ResolveCategory))
					return nil
				},
			},
			{
				Name:      "schedule",
				Usage:     "Put a to-do on the calendar.",
				ArgsUsage: "ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "YYYY-MM-DD (default today)"},
					&cli.StringFlag{Name: "time", Aliases: []string{"t"}, Usage: "HH:MM"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("usage: agenda todo schedule [--date] [--time] ID", 2)
					}
					e, err := openEnv(c)
					if err != nil {
						return err
					}
					defer e.close()

					date := c.String("date")
					if date == "" {
						date = today()
					}
					var minutes *int
					if t := c.String("time"); t != "" {
						m, err := timetext.ParseClock(t)
						if err != nil {
							return err
						}
						minutes = &m
					}
					item, err := e.store.ScheduleTodo(c.Args().First(), date, minutes)
					if err != nil {
						return persistWarning(err)
					}
					fmt.Fprintf(c.App.Writer, "scheduled as %s on %s\n", item.ID, item.Date)
					return nil
				},
			},
			{
				Name:      "rm",
				Usage:     "Delete a to-do (its schedule item, if any, stays).",
				ArgsUsage: "ID",
				Action: func(c *cli.Context) error {
					e, err := openEnv(c)
					if err != nil {
						return err
					}
					defer e.close()
					return persistWarning(e.store.DeleteTodo(c.Args().First()))
				},
			},
			{
				Name:  "stats",
				Usage: "Print total / scheduled / unscheduled counts.",
				Action: func(c *cli.Context) error {
					e, err := openEnv(c)
					if err != nil {
						return err
					}
					defer e.close()
					st := e.store.TodoStats()
					fmt.Fprintf(c.App.Writer, "total %d  scheduled %d  unscheduled %d\n", st.Total, st.Scheduled, st.Unscheduled)
					return nil
				},
			},
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write schedule items as an iCalendar file.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file (default stdout)"},
			&cli.BoolFlag{Name: "include-imported", Usage: "also export items imported from subscriptions"},
		},
		Action: func(c *cli.Context) error {
			e, err := openEnv(c)
			if err != nil {
				return err
			}
			defer e.close()

			body, err := ics.Export(e.store.Items(), ics.ExportOptions{
				Name:            "agenda",
				IncludeImported: c.Bool("include-imported"),
				Resolve:         e.store.ResolveCategory,
			})
			if err != nil {
				return err
			}
			out := c.String("out")
			if out == "" {
				_, err := fmt.Fprint(c.App.Writer, body)
				return err
			}
			if err := os.WriteFile(out, []byte(body), 0o644); err != nil {
				return err
			}
			appLog.Info("export written", "out", out, "bytes", len(body))
			return nil
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Refresh every configured ICS subscription once.",
		Action: func(c *cli.Context) error {
			e, err := openEnv(c)
			if err != nil {
				return err
			}
			defer e.close()

			sources := e.sources()
			if len(sources) == 0 {
				return cli.Exit("no subscriptions configured", 1)
			}
			stats, err := e.importer().Refresh(c.Context, sources)
			for _, st := range stats {
				fmt.Fprintf(c.App.Writer, "%s: %d items (+%d -%d)\n", st.Source, st.Items, st.Added, st.Removed)
			}
			return err
		},
	}
}

func captureCommand() *cli.Command {
	return &cli.Command{
		Name:  "capture",
		Usage: "Render the /calendar page to PNG with headless Chromium.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "page to capture (default: an in-process server)"},
			&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "YYYY-MM-DD shown (default today)"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "calendar.png", Usage: "PNG output path"},
		},
		Action: func(c *cli.Context) error {
			e, err := openEnv(c)
			if err != nil {
				return err
			}
			defer e.close()

			pageURL := c.String("url")
			if pageURL == "" {
				addr, stop, err := serveEphemeral(e)
				if err != nil {
					return err
				}
				defer stop()
				pageURL = capture.CalendarURL(addr, c.String("date"), "", e.cfg.BasicAuth)
			}
			opts := capture.OptionsFromConfig(e.cfg.Capture, pageURL, c.String("out"))
			return capture.CalendarPNG(c.Context, opts)
		},
	}
}

// serveEphemeral serves the web handler on a loopback port for the
// duration of a capture.
func serveEphemeral(e *env) (string, func(), error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}
	srv := &http.Server{
		Handler:           web.NewServer(e.cfg, e.store, web.Options{}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("capture server failed", err)
		}
	}()
	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return ln.Addr().String(), stop, nil
}
