package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/rutina/internal/config"
	"github.com/hpungsan/rutina/internal/db"
	"github.com/hpungsan/rutina/internal/errors"
	"github.com/hpungsan/rutina/internal/logger"
	"github.com/hpungsan/rutina/internal/ops"
	"github.com/hpungsan/rutina/internal/routine"
	"github.com/hpungsan/rutina/internal/web"
)

// env is what every command needs to reach the store.
type env struct {
	kv      db.KV
	cfg     *config.Config
	baseDir string
	log     *logger.Logger
	now     func() time.Time
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(kv db.KV, cfg *config.Config, baseDir string, log *logger.Logger) *cli.App {
	e := &env{kv: kv, cfg: cfg, baseDir: baseDir, log: log, now: time.Now}
	app := &cli.App{
		Name:    "rutina",
		Usage:   "Visual daily routines for autistic children and their caregivers",
		Version: Version,
		Commands: []*cli.Command{
			generateCmd(e),
			refineCmd(e),
			routineCmd(e),
			profileCmd(e),
			feedbackCmd(e),
			doneCmd(e),
			closeDayCmd(e),
			insightsCmd(e),
			eventsCmd(e),
			remindersCmd(e),
			peopleCmd(e),
			exportCmd(e),
			importCmd(e),
			serveCmd(e),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

var dayFlag = &cli.StringFlag{Name: "day", Aliases: []string{"d"}, Usage: "Day as YYYY-MM-DD (default: today)"}

func (e *env) day(c *cli.Context) string {
	if d := c.String("day"); d != "" {
		return d
	}
	return ops.Today(e.now())
}

// generateCmd creates the generate command.
func generateCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Generate a routine (profile JSON from stdin, flags, or the saved profile)",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "age", Usage: "Age in years (2-99)"},
			&cli.StringFlag{Name: "communication", Usage: "verbal|semi-verbal|non-verbal"},
			&cli.StringFlag{Name: "sensitivity", Usage: "Comma-separated: sound,light,touch,crowds"},
			&cli.StringFlag{Name: "support", Usage: "low|moderate|high"},
			&cli.StringFlag{Name: "focus", Usage: "full-day|morning|afternoon|evening"},
			&cli.StringFlag{Name: "goal", Aliases: []string{"g"}, Usage: "What the routine should achieve"},
			&cli.StringFlag{Name: "context", Usage: "home|school|mixed"},
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Child's name (optional)"},
			&cli.BoolFlag{Name: "save-profile", Usage: "Also store the profile as the saved profile"},
		},
		Action: func(c *cli.Context) error {
			p, err := e.profileInput(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.GenerateRoutine(c.Context, e.kv, p)
			if err != nil {
				return outputError(err)
			}
			if c.Bool("save-profile") {
				if _, err := ops.SaveProfile(c.Context, e.kv, p); err != nil {
					return outputError(err)
				}
			}
			return outputJSON(c, output)
		},
	}
}

// profileInput resolves the profile for generate: piped JSON wins, then
// flags, then the saved profile.
func (e *env) profileInput(c *cli.Context) (routine.ProfileInput, error) {
	var p routine.ProfileInput
	if data, err := readInput(c); err != nil {
		return p, errors.NewInternal(err)
	} else if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			return p, errors.NewInvalidRequest("profile must be a JSON object: " + err.Error())
		}
		return p, nil
	}

	if !c.IsSet("goal") && !c.IsSet("age") {
		out, err := ops.GetProfile(c.Context, e.kv)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				return p, errors.NewInvalidRequest("no profile: pipe profile JSON, pass --age/--goal/--context, or save one with 'rutina profile'")
			}
			return p, err
		}
		return out.Profile, nil
	}

	p = routine.ProfileInput{
		Name:               c.String("name"),
		Age:                c.Int("age"),
		CommunicationLevel: routine.CommunicationLevel(c.String("communication")),
		SupportLevel:       routine.SupportLevel(c.String("support")),
		RoutineFocus:       routine.RoutineFocus(c.String("focus")),
		Goal:               c.String("goal"),
		Context:            routine.Context(c.String("context")),
		SensorySensitivity: []routine.Sensitivity{},
	}
	if p.CommunicationLevel == "" {
		p.CommunicationLevel = routine.CommunicationVerbal
	}
	for _, s := range splitList(c.String("sensitivity")) {
		p.SensorySensitivity = append(p.SensorySensitivity, routine.Sensitivity(s))
	}
	return p, nil
}

// refineCmd creates the refine command.
func refineCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "refine",
		Usage: "Refine a routine from stdin: a feedback array refines the stored routine, {routine, feedback} refines the given one",
		Action: func(c *cli.Context) error {
			data, err := readInput(c)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if len(data) == 0 {
				return outputError(errors.NewInvalidRequest("feedback must be piped via stdin"))
			}

			var output *ops.RoutineOutput
			if data[0] == '[' {
				feedback, err := ops.DecodeFeedbackInput([]byte(`{"feedback":` + string(data) + `}`))
				if err != nil {
					return outputError(err)
				}
				output, err = ops.RefineStoredRoutine(c.Context, e.kv, feedback)
				if err != nil {
					return outputError(err)
				}
			} else {
				input, err := ops.DecodeRefineInput(data)
				if err != nil {
					return outputError(err)
				}
				output, err = ops.RefineRoutine(c.Context, e.kv, input)
				if err != nil {
					return outputError(err)
				}
			}
			return outputJSON(c, output)
		},
	}
}

// routineCmd creates the routine command.
func routineCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "routine",
		Usage: "Show the last generated or refined routine",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "json", Usage: "Output format: json|markdown"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.GetRoutine(c.Context, e.kv)
			if err != nil {
				return outputError(err)
			}
			switch c.String("format") {
			case "json":
				return outputJSON(c, output)
			case "markdown", "md":
				_, err := io.WriteString(c.App.Writer, routine.Markdown(output.Routine))
				return err
			default:
				return outputError(errors.NewInvalidRequest("format must be json or markdown"))
			}
		},
	}
}

// profileCmd creates the profile command.
func profileCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Show the saved profile, or replace it with profile JSON from stdin",
		Action: func(c *cli.Context) error {
			data, err := readInput(c)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if len(data) == 0 {
				output, err := ops.GetProfile(c.Context, e.kv)
				if err != nil {
					return outputError(err)
				}
				return outputJSON(c, output)
			}

			var p routine.ProfileInput
			if err := json.Unmarshal(data, &p); err != nil {
				return outputError(errors.NewInvalidRequest("profile must be a JSON object: " + err.Error()))
			}
			output, err := ops.SaveProfile(c.Context, e.kv, p)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// feedbackCmd creates the feedback command.
func feedbackCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "feedback",
		Usage:     "Record how a step went (flags, or a feedback JSON array from stdin)",
		ArgsUsage: "[stepId]",
		Flags: []cli.Flag{
			dayFlag,
			&cli.StringFlag{Name: "outcome", Aliases: []string{"o"}, Usage: "ok|hard|failed"},
			&cli.StringFlag{Name: "note", Usage: "Optional caregiver note"},
		},
		Action: func(c *cli.Context) error {
			var feedback []routine.Feedback

			if c.NArg() > 0 {
				stored, err := ops.GetRoutine(c.Context, e.kv)
				if err != nil {
					return outputError(err)
				}
				feedback = []routine.Feedback{{
					RoutineID: stored.Routine.ID,
					StepID:    c.Args().First(),
					Outcome:   routine.Outcome(c.String("outcome")),
					Note:      c.String("note"),
				}}
			} else {
				data, err := readInput(c)
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				if len(data) == 0 {
					return outputError(errors.NewInvalidRequest("pass a step ID or pipe a feedback JSON array"))
				}
				feedback, err = ops.DecodeFeedbackInput([]byte(`{"feedback":` + string(data) + `}`))
				if err != nil {
					return outputError(err)
				}
			}

			output, err := ops.RecordFeedback(c.Context, e.kv, ops.RecordFeedbackInput{
				Day:      e.day(c),
				Feedback: feedback,
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// doneCmd creates the done command.
func doneCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "done",
		Usage:     "Mark a step done on the day's checklist",
		ArgsUsage: "<stepId>",
		Flags: []cli.Flag{
			dayFlag,
			&cli.BoolFlag{Name: "undo", Usage: "Mark the step not done"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("step ID is required"))
			}
			done := !c.Bool("undo")

			output, err := ops.ToggleStep(c.Context, e.kv, ops.ToggleStepInput{
				Day:    e.day(c),
				StepID: c.Args().First(),
				Done:   &done,
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// closeDayCmd creates the close-day command.
func closeDayCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "close-day",
		Usage: "Record the day's statistics and clear its checklist and feedback",
		Flags: []cli.Flag{dayFlag},
		Action: func(c *cli.Context) error {
			output, err := ops.CloseDay(c.Context, e.kv, e.day(c), e.now())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// insightsCmd creates the insights command.
func insightsCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "insights",
		Usage: "Summarize closed days",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "days", Value: 7, Usage: "How many days back to include"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Insights(c.Context, e.kv, c.Int("days"), e.now())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// eventsCmd creates the events command and its subcommands.
func eventsCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Plan calendar events",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List a day's events by time",
				Flags: []cli.Flag{dayFlag},
				Action: func(c *cli.Context) error {
					output, err := ops.ListEvents(c.Context, e.kv, e.day(c))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, output)
				},
			},
			{
				Name:      "add",
				Usage:     "Add an event",
				ArgsUsage: "<title>",
				Flags: []cli.Flag{
					dayFlag,
					&cli.StringFlag{Name: "time", Aliases: []string{"t"}, Usage: "Start time HH:MM"},
					&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Usage: "therapy|school|family|outing|medication|custom"},
					&cli.StringFlag{Name: "location", Aliases: []string{"l"}, Usage: "Where it happens"},
					&cli.StringFlag{Name: "prep", Usage: "Comma-separated preparation items"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.AddEvent(c.Context, e.kv, ops.AddEventInput{
						Day:         e.day(c),
						Time:        c.String("time"),
						Title:       strings.Join(c.Args().Slice(), " "),
						Category:    ops.EventCategory(c.String("category")),
						Location:    c.String("location"),
						Preparation: splitList(c.String("prep")),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, output)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete an event",
				ArgsUsage: "<id>",
				Flags:     []cli.Flag{dayFlag},
				Action: func(c *cli.Context) error {
					output, err := ops.DeleteEvent(c.Context, e.kv, e.day(c), c.Args().First())
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, output)
				},
			},
			{
				Name:  "calendar",
				Usage: "List the days of a year that have events",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "year", Aliases: []string{"y"}, Usage: "Year (default: current)"},
				},
				Action: func(c *cli.Context) error {
					year := c.Int("year")
					if year == 0 {
						year = e.now().Year()
					}
					output, err := ops.DaysWithEvents(c.Context, e.kv, year)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, output)
				},
			},
		},
	}
}

// remindersCmd creates the reminders command and its subcommands.
func remindersCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "reminders",
		Usage: "Schedule caregiver reminders",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List reminders by due time",
				Action: func(c *cli.Context) error {
					output, err := ops.ListReminders(c.Context, e.kv)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, output)
				},
			},
			{
				Name:      "add",
				Usage:     "Add a reminder",
				ArgsUsage: "<title>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "at", Required: true, Usage: "Due time, RFC 3339 (2026-03-10T09:00:00-05:00)"},
					&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "medication|therapy|appointment|custom"},
					&cli.StringFlag{Name: "repeat", Aliases: []string{"r"}, Usage: "none|daily|weekly"},
					&cli.StringFlag{Name: "notes", Usage: "Optional notes"},
				},
				Action: func(c *cli.Context) error {
					at, err := time.Parse(time.RFC3339, c.String("at"))
					if err != nil {
						return outputError(errors.NewInvalidRequest("--at must be an RFC 3339 date-time"))
					}
					output, err := ops.AddReminder(c.Context, e.kv, ops.AddReminderInput{
						Title:    strings.Join(c.Args().Slice(), " "),
						Kind:     ops.ReminderKind(c.String("kind")),
						Datetime: at,
						Repeat:   ops.Repeat(c.String("repeat")),
						Notes:    c.String("notes"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, output)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a reminder",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					output, err := ops.DeleteReminder(c.Context, e.kv, c.Args().First())
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, output)
				},
			},
		},
	}
}

// peopleCmd creates the people command and its subcommands.
func peopleCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "people",
		Usage: "Manage familiar faces",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List people",
				Action: func(c *cli.Context) error {
					output, err := ops.ListPeople(c.Context, e.kv)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, output)
				},
			},
			{
				Name:      "add",
				Usage:     "Add a person",
				ArgsUsage: "<display name>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "relation", Usage: "dad|mom|brother|sister|grandpa|grandma|uncle|aunt|cousin|caregiver|teacher|other"},
					&cli.StringFlag{Name: "photo", Usage: "Image file to store as the person's photo"},
					&cli.StringFlag{Name: "audio", Usage: "Audio file with a recorded greeting"},
					&cli.StringFlag{Name: "audio-text", Usage: "Transcript of the greeting"},
				},
				Action: func(c *cli.Context) error {
					input := ops.AddPersonInput{
						DisplayName: strings.Join(c.Args().Slice(), " "),
						Relation:    ops.Relation(c.String("relation")),
						AudioText:   c.String("audio-text"),
					}
					var err error
					if input.PhotoRef, err = e.putMediaFile(c.Context, c.String("photo")); err != nil {
						return outputError(err)
					}
					if input.AudioRef, err = e.putMediaFile(c.Context, c.String("audio")); err != nil {
						return outputError(err)
					}

					output, err := ops.AddPerson(c.Context, e.kv, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, output)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a person and their media",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					output, err := ops.DeletePerson(c.Context, e.kv, c.Args().First())
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, output)
				},
			},
		},
	}
}

// putMediaFile stores a local file as media. An empty path stores nothing.
func (e *env) putMediaFile(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("cannot read %s: %v", path, err))
	}
	ref, err := ops.PutMedia(ctx, e.kv, ops.PutMediaInput{Data: data, MaxBytes: e.cfg.MaxBodyBytes})
	if err != nil {
		return "", err
	}
	return ref.Ref, nil
}

// exportCmd creates the export command.
func exportCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export all data to a JSONL backup, or the routine to markdown",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.rutina/exports/<name>-<timestamp>)"},
			&cli.BoolFlag{Name: "routine", Usage: "Export the last routine as markdown instead of a backup"},
		},
		Action: func(c *cli.Context) error {
			exportsDir := ops.ExportsDir(e.baseDir)
			input := ops.ExportInput{Path: ops.ResolveExportPath(exportsDir, c.String("path"))}

			var output *ops.ExportOutput
			var err error
			if c.Bool("routine") {
				output, err = ops.ExportRoutine(c.Context, e.kv, exportsDir, input)
			} else {
				output, err = ops.ExportBackup(c.Context, e.kv, exportsDir, input)
			}
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// importCmd creates the import command.
func importCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Restore a JSONL backup",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Backup file path"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|replace|skip"},
		},
		Action: func(c *cli.Context) error {
			exportsDir := ops.ExportsDir(e.baseDir)
			output, err := ops.ImportBackup(c.Context, e.kv, exportsDir, ops.ImportInput{
				Path: ops.ResolveExportPath(exportsDir, c.String("path")),
				Mode: ops.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API, the printable routine view and the reminder poller",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Address to bind (overrides config)"},
			&cli.IntFlag{Name: "port", Usage: "Port to listen on (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			if b := c.String("bind"); b != "" {
				e.cfg.Bind = b
			}
			if p := c.Int("port"); p != 0 {
				e.cfg.Port = p
			}

			srv, err := web.NewServer(e.kv, e.cfg, e.baseDir, Version, e.log)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			poller := web.NewReminderPoller(e.kv, time.Duration(e.cfg.ReminderPollSeconds)*time.Second, e.log)
			return web.Run(c.Context, srv, poller, e.log)
		},
	}
}

// Helper functions

// outputJSON writes v to the app's writer as indented JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	rErr := errors.As(err)
	return cli.Exit(fmt.Sprintf("[%s] %s", rErr.Code, rErr.Message), 1)
}

// readInput returns piped stdin, trimmed. A terminal yields nothing.
func readInput(c *cli.Context) ([]byte, error) {
	r := c.App.Reader
	if f, ok := r.(*os.File); ok {
		stat, err := f.Stat()
		if err != nil || stat.Mode()&os.ModeCharDevice != 0 {
			return nil, nil
		}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return []byte(strings.TrimSpace(string(data))), nil
}

// splitList splits a comma-separated string, dropping blanks.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
