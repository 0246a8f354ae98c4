package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"discripper/internal/store"
)

var (
	watchTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	watchMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	watchErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	watchOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	watchBusyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	watchPanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// boardSnapshot is one poll of the store.
type boardSnapshot struct {
	jobs   []*store.Job
	drives []*store.Drive
	at     time.Time
}

type boardLoader func(ctx context.Context) (boardSnapshot, error)

type snapshotMsg struct {
	snap boardSnapshot
	err  error
}

type tickMsg struct{}

type watchModel struct {
	load     boardLoader
	interval time.Duration
	snap     boardSnapshot
	err      error
	width    int
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var interval time.Duration
	var limit int
	var once bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live board of drives and jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnv(func(e *env) error {
				load := storeLoader(e.store, limit)
				if once || !isatty.IsTerminal(os.Stdout.Fd()) {
					snap, err := load(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), renderBoard(snap, 0))
					return nil
				}
				m := watchModel{load: load, interval: interval}
				_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
				return err
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Refresh interval")
	cmd.Flags().IntVar(&limit, "limit", 10, "Finished jobs to show")
	cmd.Flags().BoolVar(&once, "once", false, "Print the board once and exit")
	return cmd
}

// storeLoader returns every unfinished job plus the newest limit finished
// ones.
func storeLoader(st *store.Store, limit int) boardLoader {
	return func(ctx context.Context) (boardSnapshot, error) {
		all, err := st.ListJobs(ctx)
		if err != nil {
			return boardSnapshot{}, err
		}
		var shown []*store.Job
		finished := 0
		for _, job := range all {
			if job.Status.IsTerminal() {
				if finished >= limit {
					continue
				}
				finished++
			}
			shown = append(shown, job)
		}
		list, err := st.ListDrives(ctx)
		if err != nil {
			return boardSnapshot{}, err
		}
		return boardSnapshot{jobs: shown, drives: list, at: time.Now()}, nil
	}
}

func (m watchModel) Init() tea.Cmd {
	return m.refresh()
}

func (m watchModel) refresh() tea.Cmd {
	load := m.load
	return func() tea.Msg {
		snap, err := load(context.Background())
		return snapshotMsg{snap: snap, err: err}
	}
}

func (m watchModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case snapshotMsg:
		m.err = msg.err
		if msg.err == nil {
			m.snap = msg.snap
		}
		return m, m.tick()
	case tickMsg:
		return m, m.refresh()
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "r":
			return m, m.refresh()
		}
	}
	return m, nil
}

func (m watchModel) View() string {
	view := renderBoard(m.snap, m.width)
	if m.err != nil {
		view += "\n" + watchErrorStyle.Render("refresh failed: "+m.err.Error())
	}
	return view + "\n" + watchMutedStyle.Render("r refresh · q quit")
}

func renderBoard(snap boardSnapshot, width int) string {
	var b strings.Builder
	b.WriteString(watchTitleStyle.Render("discripper"))
	if !snap.at.IsZero() {
		b.WriteString(watchMutedStyle.Render("  " + snap.at.Format("15:04:05")))
	}
	b.WriteString("\n")

	var drives []string
	for _, drive := range snap.drives {
		state := watchOKStyle.Render("idle")
		if drive.JobIDCurrent != nil {
			state = watchBusyStyle.Render("job " + strconv.FormatInt(*drive.JobIDCurrent, 10))
		}
		if drive.DriveMode == store.DriveModeManual {
			state += watchMutedStyle.Render(" (manual)")
		}
		name := drive.Name
		if name == "" {
			name = drive.Mount
		}
		drives = append(drives, fmt.Sprintf("%-16s %-10s %s", name, drive.Mount, state))
	}
	if len(drives) == 0 {
		drives = append(drives, watchMutedStyle.Render("no drives registered"))
	}
	b.WriteString(panel("Drives", drives, width))
	b.WriteString("\n")

	now := snap.at
	if now.IsZero() {
		now = time.Now()
	}
	var jobs []string
	for _, job := range snap.jobs {
		jobs = append(jobs, fmt.Sprintf("%4d  %-18s %-8s %-30s %s",
			job.ID,
			statusStyle(job.Status).Render(string(job.Status)),
			job.DiscType,
			truncate(titleWithYear(job), 30),
			job.Duration(now).Truncate(time.Second),
		))
	}
	if len(jobs) == 0 {
		jobs = append(jobs, watchMutedStyle.Render("no jobs yet"))
	}
	b.WriteString(panel("Jobs", jobs, width))
	return b.String()
}

func panel(title string, lines []string, width int) string {
	style := watchPanelStyle
	if width > 4 {
		style = style.Width(width - 4)
	}
	return style.Render(watchTitleStyle.Render(title) + "\n" + strings.Join(lines, "\n"))
}

func statusStyle(status store.Status) lipgloss.Style {
	switch status {
	case store.StatusSuccess:
		return watchOKStyle
	case store.StatusFail:
		return watchErrorStyle
	default:
		return watchBusyStyle
	}
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max-1]) + "…"
}
