package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

type phase int

const (
	phaseAnalyzing phase = iota
	phaseReview
	phaseImporting
	phaseDone
)

type model struct {
	cfg  *Config
	opts ImportOptions

	currentPhase phase
	spinner      spinner.Model
	progress     progress.Model

	// Data
	analysis     *AnalyzeResult
	importResult *DetailedImportResult

	// Progress tracking
	scanProgress AnalyzeProgress
	copyProgress ImportProgress
	fileProgress FileCopyProgress
	statusMsg    string

	// Stores
	cache     *analysisCache
	metaCache *MetadataCache
	history   *ImportHistory

	// Progress channels for async updates
	analyzeEvents chan AnalyzeProgress
	importEvents  chan ImportProgress
	fileEvents    chan FileCopyProgress

	// UI state
	selectedRow  int // 0 = all dates, 1.. = result.Dates[selectedRow-1]
	scrollOffset int
	width        int
	height       int

	err error
}

type analyzeCompleteMsg struct {
	result *AnalyzeResult
}

type importCompleteMsg struct {
	result *DetailedImportResult
}

type analyzeProgressMsg AnalyzeProgress
type importProgressMsg ImportProgress
type fileProgressMsg FileCopyProgress
type errMsg error

func initialModel(cfg *Config, opts ImportOptions) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithoutPercentage(),
	)
	p.Width = 60

	metaCache, history := openStores(cfg)

	return model{
		cfg:           cfg,
		opts:          opts,
		spinner:       s,
		progress:      p,
		currentPhase:  phaseAnalyzing,
		statusMsg:     "Scanning source...",
		cache:         newAnalysisCache(cfg.CacheTTL, nil),
		metaCache:     metaCache,
		history:       history,
		analyzeEvents: make(chan AnalyzeProgress, 100),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		analyzeCmd(m.cfg, m.cache, m.metaCache, m.analyzeEvents),
		waitForAnalyzeEvent(m.analyzeEvents),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		progressWidth := msg.Width - 35
		if progressWidth < 20 {
			progressWidth = 20
		}
		m.progress.Width = progressWidth
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, m.quit()

		case "enter", "y":
			if m.currentPhase == phaseReview {
				if m.selectedRow > 0 {
					m.opts.SelectedDate = m.analysis.Dates[m.selectedRow-1]
				} else {
					m.opts.SelectedDate = ""
				}
				m.currentPhase = phaseImporting
				m.statusMsg = "Copying files..."
				events := make(chan ImportProgress, 100)
				fileEvents := make(chan FileCopyProgress, 100)
				m.importEvents = events
				m.fileEvents = fileEvents
				return m, tea.Batch(
					importCmd(m.opts, m.cfg, m.cache, m.metaCache, events, fileEvents),
					waitForImportEvent(events),
					waitForFileEvent(fileEvents),
				)
			}
			if m.currentPhase == phaseDone {
				return m, m.quit()
			}

		case "r":
			if m.currentPhase == phaseReview {
				m.cache.Invalidate(m.cfg.SourcePath)
				m.currentPhase = phaseAnalyzing
				m.statusMsg = "Rescanning source..."
				m.scanProgress = AnalyzeProgress{}
				m.selectedRow = 0
				m.scrollOffset = 0
				events := make(chan AnalyzeProgress, 100)
				m.analyzeEvents = events
				return m, tea.Batch(
					analyzeCmd(m.cfg, m.cache, m.metaCache, events),
					waitForAnalyzeEvent(events),
				)
			}

		case "up", "k":
			if m.currentPhase == phaseReview && m.selectedRow > 0 {
				m.selectedRow--
				if m.selectedRow < m.scrollOffset {
					m.scrollOffset = m.selectedRow
				}
			}

		case "down", "j":
			if m.currentPhase == phaseReview && m.selectedRow < len(m.analysis.Dates) {
				m.selectedRow++
				maxVisible := m.height - 14
				if m.selectedRow >= m.scrollOffset+maxVisible {
					m.scrollOffset = m.selectedRow - maxVisible + 1
				}
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case analyzeProgressMsg:
		m.scanProgress = AnalyzeProgress(msg)
		if m.analyzeEvents != nil {
			return m, waitForAnalyzeEvent(m.analyzeEvents)
		}
		return m, nil

	case importProgressMsg:
		m.copyProgress = ImportProgress(msg)
		if m.importEvents != nil {
			return m, waitForImportEvent(m.importEvents)
		}
		return m, nil

	case fileProgressMsg:
		m.fileProgress = FileCopyProgress(msg)
		if m.fileEvents != nil {
			return m, waitForFileEvent(m.fileEvents)
		}
		return m, nil

	case analyzeCompleteMsg:
		m.analysis = msg.result
		m.currentPhase = phaseReview
		m.statusMsg = "Select what to import"
		return m, nil

	case importCompleteMsg:
		m.importResult = msg.result
		m.currentPhase = phaseDone
		m.statusMsg = fmt.Sprintf("Imported %d of %d files", msg.result.Imported, msg.result.Total)
		if m.history != nil {
			if err := m.history.Record(m.opts, msg.result); err != nil {
				m.statusMsg += fmt.Sprintf(" (history not recorded: %v)", err)
			}
		}
		return m, nil

	case errMsg:
		m.err = error(msg)
		return m, nil
	}

	return m, nil
}

func (m model) quit() tea.Cmd {
	if m.metaCache != nil {
		m.metaCache.Close()
	}
	return tea.Quit
}

func (m model) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to quit", m.err)
	}

	var b strings.Builder
	b.WriteString("\n")

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86")).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1).
		MarginLeft(2)

	b.WriteString(titleStyle.Render("Media Wrangler"))
	b.WriteString("\n\n")

	// Phase indicator
	b.WriteString("  ")
	phases := []string{"Analyzing", "Review", "Importing", "Done"}
	for i, name := range phases {
		if i > 0 {
			b.WriteString(" → ")
		}
		if int(m.currentPhase) == i {
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true).Render(name))
		} else if int(m.currentPhase) > i {
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("✓"))
		} else {
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render(name))
		}
	}
	b.WriteString("\n\n")

	switch m.currentPhase {
	case phaseAnalyzing:
		b.WriteString(fmt.Sprintf("  %s %s\n\n", m.spinner.View(), m.statusMsg))
		b.WriteString(fmt.Sprintf("  Scanned: %d dirs • %d files • %d media found\n",
			m.scanProgress.ScannedDirs,
			m.scanProgress.ScannedFiles,
			m.scanProgress.FoundMediaFiles))
		if m.scanProgress.CurrentPath != "" {
			fileStyle := lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true).
				MarginLeft(2)
			b.WriteString("\n" + fileStyle.Render(truncateFilePath(m.scanProgress.CurrentPath, maxPathWidth(m.width))))
		}

	case phaseReview:
		b.WriteString(m.renderReview())

	case phaseImporting:
		b.WriteString(fmt.Sprintf("  %s %s\n\n", m.spinner.View(), m.statusMsg))
		if m.copyProgress.Total > 0 {
			percent := float64(m.copyProgress.Current) / float64(m.copyProgress.Total)
			b.WriteString("  ")
			b.WriteString(m.progress.ViewAs(percent))
			b.WriteString(fmt.Sprintf(" %d%% (%d/%d files)\n",
				int(percent*100), m.copyProgress.Current, m.copyProgress.Total))
		}
		if m.copyProgress.CurrentFile != "" {
			fileStyle := lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true).
				MarginLeft(2)
			line := truncateFilePath(m.copyProgress.CurrentFile, maxPathWidth(m.width))
			if m.fileProgress.Speed > 0 {
				line += fmt.Sprintf("  %s/s", humanize.Bytes(uint64(m.fileProgress.Speed)))
			}
			b.WriteString("\n" + fileStyle.Render(line))
		}

	case phaseDone:
		b.WriteString(m.renderDone())
	}

	// Footer
	b.WriteString("\n\n")
	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		MarginLeft(2)
	switch m.currentPhase {
	case phaseReview:
		b.WriteString(helpStyle.Render("↑/↓: navigate • enter: import selection • r: rescan • q: quit"))
	case phaseDone:
		b.WriteString(helpStyle.Render("enter: quit • q: quit"))
	default:
		b.WriteString(helpStyle.Render("q: quit"))
	}
	b.WriteString("\n")

	return b.String()
}

func (m model) renderReview() string {
	var b strings.Builder

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1).
		MarginLeft(2)

	b.WriteString(boxStyle.Render(fmt.Sprintf(
		"%d media files • %s • %d days\n%s → %s",
		m.analysis.TotalFiles,
		humanize.Bytes(uint64(m.analysis.TotalSize)),
		len(m.analysis.Dates),
		truncateFilePath(m.opts.SourcePath, 30),
		truncateFilePath(m.opts.DestinationPath, 30),
	)))
	b.WriteString("\n\n")

	rows := make([]string, 0, len(m.analysis.Dates)+1)
	rows = append(rows, fmt.Sprintf("All dates (%d files)", m.analysis.TotalFiles))
	for _, date := range m.analysis.Dates {
		files := m.analysis.FilesByDate[date]
		var size int64
		for _, f := range files {
			size += f.Size
		}
		rows = append(rows, fmt.Sprintf("%s (%d files, %s)", date, len(files), humanize.Bytes(uint64(size))))
	}

	maxVisible := m.height - 14
	if maxVisible < 3 {
		maxVisible = 3
	}
	start := m.scrollOffset
	end := start + maxVisible
	if end > len(rows) {
		end = len(rows)
	}

	for i := start; i < end; i++ {
		if i == m.selectedRow {
			selectedStyle := lipgloss.NewStyle().
				Background(lipgloss.Color("62")).
				Foreground(lipgloss.Color("230")).
				MarginLeft(2)
			b.WriteString(selectedStyle.Render("► " + rows[i]))
		} else {
			b.WriteString("    " + rows[i])
		}
		b.WriteString("\n")
	}

	if len(rows) > maxVisible {
		moreStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginLeft(2)
		b.WriteString(moreStyle.Render(fmt.Sprintf("\n... %d more ...", len(rows)-end)))
	}

	return b.String()
}

func (m model) renderDone() string {
	var b strings.Builder

	r := m.importResult
	doneStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true).
		MarginLeft(2)
	b.WriteString(doneStyle.Render("✓ " + m.statusMsg))
	b.WriteString("\n\n")

	detailStyle := lipgloss.NewStyle().MarginLeft(2)
	if len(r.Errors) > 0 {
		b.WriteString(detailStyle.Render(fmt.Sprintf("Retryable failures: %d", len(r.Errors))))
		b.WriteString("\n")
		for i, e := range r.Errors {
			if i >= 5 {
				b.WriteString(detailStyle.Render(fmt.Sprintf("  ... and %d more", len(r.Errors)-5)))
				b.WriteString("\n")
				break
			}
			b.WriteString(detailStyle.Render(fmt.Sprintf("  %s (%s)", e.File, e.Type)))
			b.WriteString("\n")
		}
	}
	if len(r.Skipped) > 0 {
		b.WriteString(detailStyle.Render(fmt.Sprintf("Skipped: %d", len(r.Skipped))))
		b.WriteString("\n")
	}
	if len(r.Warnings) > 0 {
		b.WriteString(detailStyle.Render(fmt.Sprintf("Warnings: %d", len(r.Warnings))))
		b.WriteString("\n")
	}

	return b.String()
}

func maxPathWidth(width int) int {
	w := width - 20
	if w < 40 {
		w = 40
	}
	return w
}

// Commands

func analyzeCmd(cfg *Config, cache *analysisCache, metaCache *MetadataCache, events chan AnalyzeProgress) tea.Cmd {
	return func() tea.Msg {
		result, err := analyzeWithCache(context.Background(), cfg.SourcePath, cfg, cache, metaCache, func(p AnalyzeProgress) {
			// Fire-and-forget: a slow consumer lags the stream, never the scan
			select {
			case events <- p:
			default:
			}
		})
		close(events)
		if err != nil {
			return errMsg(err)
		}
		return analyzeCompleteMsg{result: result}
	}
}

func importCmd(opts ImportOptions, cfg *Config, cache *analysisCache, metaCache *MetadataCache, events chan ImportProgress, fileEvents chan FileCopyProgress) tea.Cmd {
	return func() tea.Msg {
		result, err := importMedia(context.Background(), opts, cfg, cache, metaCache, func(p ImportProgress) {
			select {
			case events <- p:
			default:
			}
		}, func(p FileCopyProgress) {
			select {
			case fileEvents <- p:
			default:
			}
		})
		close(events)
		close(fileEvents)
		if err != nil {
			return errMsg(err)
		}
		return importCompleteMsg{result: result}
	}
}

func waitForAnalyzeEvent(events <-chan AnalyzeProgress) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-events
		if !ok {
			return nil
		}
		return analyzeProgressMsg(p)
	}
}

func waitForImportEvent(events <-chan ImportProgress) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-events
		if !ok {
			return nil
		}
		return importProgressMsg(p)
	}
}

func waitForFileEvent(events <-chan FileCopyProgress) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-events
		if !ok {
			return nil
		}
		return fileProgressMsg(p)
	}
}
