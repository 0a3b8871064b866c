package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lotas/notebridge/internal/applog"
	"github.com/lotas/notebridge/internal/config"
	"github.com/lotas/notebridge/internal/export"
	"github.com/lotas/notebridge/internal/handler"
	"github.com/lotas/notebridge/internal/notesink"
	"github.com/lotas/notebridge/internal/notify"
	"github.com/lotas/notebridge/internal/opstate"
	"github.com/lotas/notebridge/internal/reader"
	"github.com/lotas/notebridge/internal/router"
	"github.com/lotas/notebridge/internal/server"
	"github.com/lotas/notebridge/internal/storage"
	"github.com/lotas/notebridge/internal/summarize"
	"github.com/lotas/notebridge/internal/transport"
	"github.com/lotas/notebridge/internal/tui"
	"github.com/lotas/notebridge/internal/types"
)

const settingsTTL = 30 * time.Second

var (
	portFlag     int
	headlessFlag bool
	tagFlag      string
	unreadFlag   bool
	markReadFlag bool
	limitFlag    int
	formatFlag   string
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

// app is the wired daemon: storage, settings and handlers.
type app struct {
	cfg      config.Config
	db       *sql.DB
	settings *config.FileSource
	handlers *handler.Handlers
	notifier notify.Notifier
	inbox    chan storage.NotificationRecord
}

func setup(console bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := applog.Init(cfg.DataDir, console); err != nil {
		return nil, fmt.Errorf("init log: %w", err)
	}

	db, err := storage.OpenDB(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a := &app{
		cfg:      cfg,
		db:       db,
		settings: config.NewFileSource(cfg.SettingsPath, settingsTTL),
		inbox:    make(chan storage.NotificationRecord, 16),
	}

	inbox := &notify.Inbox{DB: db, Published: a.inbox}
	switch cfg.Notify {
	case config.NotifyDesktop:
		a.notifier = notify.NewDesktop()
	case config.NotifyInbox:
		a.notifier = inbox
	default:
		a.notifier = notify.Multi{notify.NewDesktop(), inbox}
	}

	store := &storage.Store{DB: db}
	a.handlers = &handler.Handlers{
		Settings:   a.settings,
		State:      opstate.New(store),
		Store:      store,
		Summarizer: summarize.New(),
		Reader:     reader.NewAuto(),
		Sink:       notesink.New(a.settings, transport.New()),
		Uploader:   notesink.NewUploader(),
	}
	return a, nil
}

func (a *app) close() {
	a.db.Close()
	applog.Close()
}

var rootCmd = &cobra.Command{
	Use:   "notebridge",
	Short: "Local companion daemon for the note-capture browser extension",
	Long: `notebridge runs the background side of the note-capture extension: it
summarizes or extracts pages, sends notes to a Blinko-compatible service and
pushes results back to the popup and content scripts over WebSocket.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daemon (default)",
	RunE:  runServe,
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the stored summary waiting for review",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(false)
		if err != nil {
			return err
		}
		defer a.close()

		p := a.handlers.StoredSummary(cmd.Context())
		if p == nil {
			fmt.Println(faint("No stored summary."))
			return nil
		}
		kind := "Summary"
		if p.IsExtractOnly {
			kind = "Extract"
		}
		fmt.Printf("%s %s\n", bold(kind), faint(time.UnixMilli(p.Timestamp).Format(time.RFC3339)))
		if p.Title != "" {
			fmt.Println(p.Title)
		}
		if p.URL != "" {
			fmt.Println(faint(p.URL))
		}
		fmt.Println()
		fmt.Println(p.Summary)
		return nil
	},
}

var noteCmd = &cobra.Command{
	Use:   "note [text...]",
	Short: "Send a quick note (reads stdin when no text is given)",
	RunE: func(cmd *cobra.Command, args []string) error {
		content := strings.Join(args, " ")
		if content == "" {
			data, err := readStdin()
			if err != nil {
				return err
			}
			content = data
		}

		a, err := setup(false)
		if err != nil {
			return err
		}
		defer a.close()

		draft, err := a.handlers.Draft(cmd.Context())
		if err != nil {
			return err
		}
		res := a.handlers.Save(cmd.Context(), handler.SaveRequest{
			Content:     content,
			Type:        types.ScenarioQuickNote,
			Tag:         tagFlag,
			Attachments: draft.Attachments,
		})
		if !res.Success {
			return fmt.Errorf("%s %s", red("✗"), res.Error)
		}
		fmt.Printf("%s note sent", green("✓"))
		if n := len(draft.Attachments); n > 0 {
			fmt.Printf(" with %d attachment(s)", n)
		}
		fmt.Println()
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file|url>",
	Short: "Upload a file and attach it to the quick-note draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(false)
		if err != nil {
			return err
		}
		defer a.close()

		target := args[0]
		var res handler.UploadResult
		if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
			res = a.handlers.UploadByURL(cmd.Context(), handler.UploadByURLRequest{URL: target})
		} else {
			data, err := os.ReadFile(target)
			if err != nil {
				return err
			}
			res = a.handlers.Upload(cmd.Context(), handler.UploadRequest{
				Name: filepath.Base(target),
				Type: mime.TypeByExtension(filepath.Ext(target)),
				Data: data,
			})
		}
		if !res.Success {
			return fmt.Errorf("%s %s", red("✗"), res.Error)
		}
		fmt.Printf("%s uploaded %s %s\n", green("✓"), res.Attachment.Name, faint(res.Attachment.Path))
		return nil
	},
}

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "List notifications stored in the inbox",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(false)
		if err != nil {
			return err
		}
		defer a.close()

		recs, err := storage.ListNotifications(cmd.Context(), a.db, unreadFlag, limitFlag)
		if err != nil {
			return err
		}
		switch formatFlag {
		case "markdown":
			fmt.Print(export.Markdown(recs, time.Now()))
		case "json":
			out, err := export.JSON(recs, time.Now())
			if err != nil {
				return err
			}
			fmt.Println(out)
		case "text":
			printNotifications(recs)
		default:
			return fmt.Errorf("unknown format %q (want text, markdown or json)", formatFlag)
		}
		if markReadFlag {
			n, err := storage.MarkNotificationsRead(cmd.Context(), a.db)
			if err != nil {
				return err
			}
			fmt.Println(faint(fmt.Sprintf("%d marked read", n)))
		}
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the settings file",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(false)
		if err != nil {
			return err
		}
		defer a.close()

		fmt.Println(faint("settings: " + a.settings.Path()))
		s, err := a.settings.Snapshot(cmd.Context())
		if err != nil {
			return fmt.Errorf("%s %v", red("✗"), err)
		}
		report := func(name string, err error) {
			if err != nil {
				fmt.Printf("%s %s: %v\n", red("✗"), name, err)
				return
			}
			fmt.Printf("%s %s\n", green("✓"), name)
		}
		report("model ("+s.Provider+" "+s.ModelName+")", s.CheckModel())
		report("note service", s.CheckTarget())
		fmt.Printf("%s extractor: %s\n", faint("·"), s.Extractor)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{rootCmd, serveCmd} {
		c.Flags().IntVar(&portFlag, "port", 0, "WebSocket port (default NOTEBRIDGE_PORT or 19192)")
		c.Flags().BoolVar(&headlessFlag, "headless", false, "Run without the terminal monitor")
	}
	noteCmd.Flags().StringVar(&tagFlag, "tag", "", "Tag line appended to the note")
	notificationsCmd.Flags().BoolVar(&unreadFlag, "unread", false, "Only unread notifications")
	notificationsCmd.Flags().BoolVar(&markReadFlag, "mark-read", false, "Mark listed notifications as read")
	notificationsCmd.Flags().IntVar(&limitFlag, "limit", 20, "Maximum number of notifications")
	notificationsCmd.Flags().StringVar(&formatFlag, "format", "text", "Output format: text, markdown or json")

	rootCmd.AddCommand(serveCmd, stateCmd, noteCmd, uploadCmd, notificationsCmd, checkCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := setup(headlessFlag)
	if err != nil {
		return err
	}
	defer a.close()
	if portFlag != 0 {
		a.cfg.Port = portFlag
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(a.cfg.Port)
	rt := router.New(ctx, srv, a.handlers, a.notifier)
	go rt.Run(ctx, srv.Messages())

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe(ctx) }()

	applog.Info("daemon.start", "port", a.cfg.Port, "settings", a.settings.Path(), "notify", string(a.cfg.Notify))

	if headlessFlag {
		select {
		case <-ctx.Done():
		case err = <-errc:
		}
	} else {
		err = runMonitor(ctx, a, srv, errc)
	}
	stop()
	rt.Wait()
	applog.Info("daemon.stop")
	return err
}

func runMonitor(ctx context.Context, a *app, srv *server.Server, errc <-chan error) error {
	recent, err := storage.ListNotifications(ctx, a.db, false, 50)
	if err != nil {
		applog.Error("daemon.inbox", err)
	}
	m := tui.NewModel(tui.Sources{
		Port:    a.cfg.Port,
		State:   a.handlers.State,
		Peers:   srv,
		Notices: a.inbox,
		Recent:  recent,
		Clear: func(ctx context.Context) error {
			if res := a.handlers.Clear(ctx); !res.Success {
				return fmt.Errorf("%s", res.Error)
			}
			return nil
		},
		MarkRead: func(ctx context.Context) error {
			_, err := storage.MarkNotificationsRead(ctx, a.db)
			return err
		},
	})
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	go func() {
		if err := <-errc; err != nil {
			applog.Error("server.stopped", err)
			p.Quit()
		}
	}()
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func printNotifications(recs []storage.NotificationRecord) {
	if len(recs) == 0 {
		fmt.Println(faint("No notifications."))
	}
	for _, r := range recs {
		marker := yellow("●")
		if r.ReadAt != nil {
			marker = " "
		}
		fmt.Printf("%s %s %s\n  %s\n", marker, bold(r.Title), faint(r.CreatedAt.Format("2006-01-02 15:04")), r.Message)
	}
}

func readStdin() (string, error) {
	info, err := os.Stdin.Stat()
	if err != nil {
		return "", err
	}
	if info.Mode()&os.ModeCharDevice != 0 {
		return "", fmt.Errorf("no note text given")
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
