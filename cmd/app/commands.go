package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/starford/notegraph/internal"
	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/models"
)

const dateLayout = "2006-01-02 15:04"

func commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "reindex",
			Usage: "Index new and changed notes and drop deleted ones",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "full", Usage: "Discard the index and rebuild it from every note"},
			},
			Action: appAction(false, reindexCmd),
		},
		{
			Name:      "search",
			Usage:     "Full-text search",
			ArgsUsage: "<query>",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20},
			},
			Action: appAction(true, searchCmd),
		},
		{
			Name:  "list",
			Usage: "List notes, newest first",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "tag", Usage: "Only notes with this tag"},
				&cli.StringFlag{Name: "folder", Usage: "Only notes in this folder"},
				&cli.BoolFlag{Name: "plain", Usage: "Only plain notes"},
				&cli.BoolFlag{Name: "encrypted", Usage: "Only encrypted notes"},
				&cli.BoolFlag{Name: "inbox", Usage: "Only notes without a folder"},
				&cli.StringFlag{Name: "sort", Usage: "modified, created or title", Value: "modified"},
				&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 50},
				&cli.IntFlag{Name: "offset"},
			},
			Action: appAction(true, listCmd),
		},
		{
			Name:   "folders",
			Usage:  "Show note counts per folder",
			Action: appAction(true, foldersCmd),
		},
		{
			Name:      "show",
			Usage:     "Print a note with its links",
			ArgsUsage: "<id|title|path>",
			Action:    appAction(true, showCmd),
		},
		{
			Name:      "backlinks",
			Usage:     "Links pointing at a note",
			ArgsUsage: "<id|title|path>",
			Action:    appAction(true, backlinksCmd),
		},
		{
			Name:      "links",
			Usage:     "Links leaving a note",
			ArgsUsage: "<id|title|path>",
			Action:    appAction(true, linksCmd),
		},
		{
			Name:   "broken",
			Usage:  "Links whose target matches no note",
			Action: appAction(true, brokenCmd),
		},
		{
			Name:      "mentions",
			Usage:     "Unlinked mentions of a note's title",
			ArgsUsage: "<id|title|path>",
			Action:    appAction(true, mentionsCmd),
		},
		{
			Name:      "anchors",
			Usage:     "Section and block links of a note whose anchor is missing",
			ArgsUsage: "<id|title|path>",
			Action:    appAction(true, anchorsCmd),
		},
		{
			Name:      "resolve",
			Usage:     "Show which note a link target resolves to",
			ArgsUsage: "<target>",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "fuzzy", Usage: "Fall back to full-text search"},
			},
			Action: appAction(true, resolveCmd),
		},
		{
			Name:      "follow",
			Usage:     "Print the note, section or block a wiki link points to",
			ArgsUsage: "<[[link]]>",
			Action:    appAction(true, followCmd),
		},
		{
			Name:      "toc",
			Usage:     "Print a note's heading outline",
			ArgsUsage: "<id|title|path>",
			Action:    appAction(true, tocCmd),
		},
		{
			Name:      "section",
			Usage:     "Print one section of a note",
			ArgsUsage: "<id|title|path> <heading>",
			Action:    appAction(true, sectionCmd),
		},
		{
			Name:  "block",
			Usage: "List or add block anchors",
			Commands: []*cli.Command{
				{
					Name:      "list",
					Usage:     "List a note's block anchors",
					ArgsUsage: "<id|title|path>",
					Action:    appAction(true, blockListCmd),
				},
				{
					Name:      "add",
					Usage:     "Anchor a line (zero-based) and print its id",
					ArgsUsage: "<id|title|path> <line>",
					Action:    appAction(true, blockAddCmd),
				},
			},
		},
		{
			Name:  "todos",
			Usage: "List task items",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "open", Usage: "Only open items"},
				&cli.BoolFlag{Name: "done", Usage: "Only completed items"},
				&cli.StringFlag{Name: "folder", Usage: "Only notes in this folder"},
				&cli.BoolFlag{Name: "counts", Usage: "Print open/done totals only"},
			},
			Action: appAction(true, todosCmd),
		},
		{
			Name:   "watch",
			Usage:  "Keep the index in sync with the notes directory until interrupted",
			Action: appAction(true, watchCmd),
		},
		{
			Name:   "serve",
			Usage:  "Run the HTTP API and file watcher",
			Action: serve,
		},
		{
			Name:   "mcp",
			Usage:  "Serve MCP tools on stdin/stdout",
			Action: serveMCP,
		},
	}
}

func requireArgs(cmd *cli.Command, n int) ([]string, error) {
	args := cmd.Args().Slice()
	if len(args) < n {
		return nil, fmt.Errorf("%s: expected %d argument(s), usage: %s %s: %w",
			cmd.Name, n, cmd.Name, cmd.ArgsUsage, apperr.ErrInvalidArgument)
	}
	return args, nil
}

func reindexCmd(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	if cmd.Bool("full") {
		n, err := app.Service.Rebuild(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "rebuilt index: %d notes\n", n)
		return nil
	}
	stats, err := app.Service.Reindex(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "indexed %d, removed %d, failed %d\n", stats.Indexed, stats.Removed, stats.Failed)
	return nil
}

func searchCmd(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	args, err := requireArgs(cmd, 1)
	if err != nil {
		return err
	}
	results, err := app.Service.Search(ctx, strings.Join(args, " "), int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(stdout, "no matches")
		return nil
	}
	for _, r := range results {
		fmt.Fprintf(stdout, "%s  %s  (%s)\n", models.IDFromPath(r.Path), r.Title, r.Modified.Local().Format(dateLayout))
		if r.Snippet != "" {
			fmt.Fprintf(stdout, "    %s\n", strings.ReplaceAll(r.Snippet, "\n", " "))
		}
	}
	return nil
}

func listCmd(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	opts := index.ListOptions{
		Tag:    cmd.String("tag"),
		Folder: cmd.String("folder"),
		Inbox:  cmd.Bool("inbox"),
		Sort:   cmd.String("sort"),
		Limit:  int(cmd.Int("limit")),
		Offset: int(cmd.Int("offset")),
	}
	switch {
	case cmd.Bool("plain") && cmd.Bool("encrypted"):
		return fmt.Errorf("list: --plain and --encrypted are exclusive: %w", apperr.ErrInvalidArgument)
	case cmd.Bool("plain"):
		v := true
		opts.Plain = &v
	case cmd.Bool("encrypted"):
		v := false
		opts.Plain = &v
	}

	items, total, err := app.Service.ListNotes(ctx, opts)
	if err != nil {
		return err
	}
	for _, m := range items {
		lock := " "
		if !m.IsPlain {
			lock = "*"
		}
		fmt.Fprintf(stdout, "%s %s  %s  %s", lock, m.ID, m.Modified.Local().Format(dateLayout), m.Title)
		if len(m.Tags) > 0 {
			fmt.Fprintf(stdout, "  #%s", strings.Join(m.Tags, " #"))
		}
		fmt.Fprintln(stdout)
	}
	fmt.Fprintf(stdout, "%d of %d notes\n", len(items), total)
	return nil
}

func foldersCmd(ctx context.Context, _ *cli.Command, app *internal.App) error {
	folders, err := app.Service.Folders(ctx)
	if err != nil {
		return err
	}
	for _, f := range folders {
		fmt.Fprintf(stdout, "%5d  %s\n", f.Count, f.Name)
	}
	return nil
}

func showCmd(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	args, err := requireArgs(cmd, 1)
	if err != nil {
		return err
	}
	n, err := app.Service.GetNote(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "# %s\n", n.Title)
	fmt.Fprintf(stdout, "id: %s  created: %s  modified: %s\n", n.ID,
		n.Created.Local().Format(dateLayout), n.Modified.Local().Format(dateLayout))
	if len(n.Tags) > 0 {
		fmt.Fprintf(stdout, "tags: %s\n", strings.Join(n.Tags, ", "))
	}
	fmt.Fprintf(stdout, "\n%s\n", n.Content)
	if len(n.Backlinks) > 0 {
		fmt.Fprintf(stdout, "\n--- %d backlinks\n", len(n.Backlinks))
		printEdges(n.Backlinks, true)
	}
	return nil
}

func printEdges(edges []models.LinkEdge, incoming bool) {
	for _, e := range edges {
		id, title := e.TargetID, e.TargetTitle
		if incoming {
			id, title = e.SourceID, e.SourceTitle
		}
		anchor := ""
		switch e.LinkType {
		case models.LinkSection:
			anchor = "#" + e.Section
		case models.LinkBlock:
			anchor = "^" + e.BlockID
		}
		if title == "" {
			title = "(unresolved)"
		}
		fmt.Fprintf(stdout, "%s  %s%s\n", id, title, anchor)
		if e.Context != "" {
			fmt.Fprintf(stdout, "    %s\n", strings.ReplaceAll(e.Context, "\n", " "))
		}
	}
}

func backlinksCmd(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	args, err := requireArgs(cmd, 1)
	if err != nil {
		return err
	}
	edges, err := app.Service.Backlinks(ctx, args[0])
	if err != nil {
		return err
	}
	if len(edges) == 0 {
		fmt.Fprintln(stdout, "no backlinks")
		return nil
	}
	printEdges(edges, true)
	return nil
}

func linksCmd(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	args, err := requireArgs(cmd, 1)
	if err != nil {
		return err
	}
	edges, err := app.Service.OutgoingLinks(ctx, args[0])
	if err != nil {
		return err
	}
	if len(edges) == 0 {
		fmt.Fprintln(stdout, "no outgoing links")
		return nil
	}
	printEdges(edges, false)
	return nil
}

func brokenCmd(ctx context.Context, _ *cli.Command, app *internal.App) error {
	edges, err := app.Service.BrokenLinks(ctx)
	if err != nil {
		return err
	}
	if len(edges) == 0 {
		fmt.Fprintln(stdout, "no broken links")
		return nil
	}
	for _, e := range edges {
		fmt.Fprintf(stdout, "%s  %s -> [[%s]]\n", e.SourceID, e.SourceTitle, e.TargetID)
	}
	return nil
}

func mentionsCmd(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	args, err := requireArgs(cmd, 1)
	if err != nil {
		return err
	}
	mentions, err := app.Service.UnlinkedMentions(ctx, args[0])
	if err != nil {
		return err
	}
	if len(mentions) == 0 {
		fmt.Fprintln(stdout, "no unlinked mentions")
		return nil
	}
	for _, m := range mentions {
		fmt.Fprintf(stdout, "%s  %s @%d\n    %s\n", m.SourceID, m.SourceTitle, m.Position,
			strings.ReplaceAll(m.Context, "\n", " "))
	}
	return nil
}

func anchorsCmd(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	args, err := requireArgs(cmd, 1)
	if err != nil {
		return err
	}
	problems, err := app.Service.AnchorProblems(ctx, args[0])
	if err != nil {
		return err
	}
	if len(problems) == 0 {
		fmt.Fprintln(stdout, "all anchors resolve")
		return nil
	}
	for _, p := range problems {
		fmt.Fprintf(stdout, "%s  %s: %s\n", p.Edge.TargetID, p.Edge.TargetTitle, p.Reason)
	}
	return nil
}

func resolveCmd(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	args, err := requireArgs(cmd, 1)
	if err != nil {
		return err
	}
	target := strings.Join(args, " ")
	ref, ok, err := app.Service.Resolve(ctx, target, cmd.Bool("fuzzy"))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("resolve %q: %w", target, apperr.ErrNotFound)
	}
	fmt.Fprintf(stdout, "%s  %s  %s\n", ref.ID, ref.Title, ref.Path)
	return nil
}

func followCmd(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	args, err := requireArgs(cmd, 1)
	if err != nil {
		return err
	}
	f, err := app.Service.Follow(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s  %s\n\n%s\n", f.Target.ID, f.Target.Title, f.Content)
	return nil
}

func tocCmd(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	args, err := requireArgs(cmd, 1)
	if err != nil {
		return err
	}
	toc, err := app.Service.TableOfContents(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, toc)
	return nil
}

func sectionCmd(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	args, err := requireArgs(cmd, 2)
	if err != nil {
		return err
	}
	text, err := app.Service.Section(ctx, args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, strings.TrimRight(text, "\n"))
	return nil
}

func blockListCmd(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	args, err := requireArgs(cmd, 1)
	if err != nil {
		return err
	}
	blocks, err := app.Service.Blocks(ctx, args[0])
	if err != nil {
		return err
	}
	if len(blocks) == 0 {
		fmt.Fprintln(stdout, "no block anchors")
		return nil
	}
	for _, b := range blocks {
		fmt.Fprintf(stdout, "^%s  %4d  %s\n", b.ID, b.Line, b.Content)
	}
	return nil
}

func blockAddCmd(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	args, err := requireArgs(cmd, 2)
	if err != nil {
		return err
	}
	line, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("block add: line %q: %w", args[1], apperr.ErrInvalidArgument)
	}
	id, err := app.Service.AddBlockID(ctx, args[0], line)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "^%s\n", id)
	return nil
}

func todosCmd(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	folder := cmd.String("folder")
	if cmd.Bool("counts") {
		open, done, err := app.Service.TodoCounts(ctx, folder)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "open %d, done %d\n", open, done)
		return nil
	}

	f := index.TodoFilter{Folder: folder}
	switch {
	case cmd.Bool("open") && cmd.Bool("done"):
	case cmd.Bool("open"):
		v := false
		f.Completed = &v
	case cmd.Bool("done"):
		v := true
		f.Completed = &v
	}
	todos, err := app.Service.Todos(ctx, f)
	if err != nil {
		return err
	}
	for _, t := range todos {
		mark := " "
		if t.Completed {
			mark = "x"
		}
		due := ""
		if t.DueDate != "" {
			due = "  due " + t.DueDate
		}
		fmt.Fprintf(stdout, "[%s] %s%s  (%s:%d)\n", mark, t.Task, due, models.IDFromPath(t.NotePath), t.Line)
	}
	return nil
}

func watchCmd(ctx context.Context, _ *cli.Command, app *internal.App) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	err := index.Watch(ctx, app.DB, app.Notes, app.Logger, func(kind, path string) {
		fmt.Fprintf(stdout, "%s %-10s %s\n", time.Now().Format("15:04:05"), kind, path)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	app.Logger.Info("watch stopped", slog.Duration("uptime", time.Since(start)))
	return nil
}
