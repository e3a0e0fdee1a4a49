package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/psarna/fsalloc/fsalloc"
)

const tickInterval = 200 * time.Millisecond

type tickMsg time.Time

// Model polls the engine counters on a timer while the workload
// goroutine keeps the pager busy.
type Model struct {
	workload *workload
	capacity int

	stats fsalloc.Stats
	prev  fsalloc.Stats
	start time.Time
	err   error

	width int
}

func newModel(w *workload, capacity int) Model {
	return Model{workload: w, capacity: capacity, start: time.Now()}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tickMsg:
		if err := m.workload.err(); err != nil {
			m.err = err
			return m, tea.Quit
		}
		m.prev = m.stats
		if s, err := fsalloc.GetStats(); err == nil {
			m.stats = s
		}
		return m, tick()
	}
	return m, nil
}

func (m Model) View() string {
	if m.err != nil {
		return errStyle.Render(fmt.Sprintf("workload failed: %v", m.err)) + "\n"
	}

	header := headerStyle.Render("fsalloctop") + " " +
		mutedStyle.Render(fmt.Sprintf("budget %d regions · %d live · round %d · up %s",
			m.capacity, len(m.workload.regions), m.workload.rounds.Load(),
			time.Since(m.start).Round(time.Second)))

	perSec := float64(time.Second) / float64(tickInterval)
	tiles := lipgloss.JoinHorizontal(lipgloss.Top,
		tile("allocs", m.stats.Allocs, 0),
		tile("frees", m.stats.Frees, 0),
		tile("clean evictions", m.stats.CacheHits,
			float64(m.stats.CacheHits-m.prev.CacheHits)*perSec),
		tile("writebacks", m.stats.Writebacks,
			float64(m.stats.Writebacks-m.prev.Writebacks)*perSec),
	)

	help := statusStyle.Render("q to quit")
	return lipgloss.JoinVertical(lipgloss.Left, header, tiles, help) + "\n"
}

func tile(label string, value uint64, rate float64) string {
	body := valueStyle.Render(fmt.Sprintf("%d", value)) + "\n" +
		labelStyle.Render(label)
	if rate > 0 {
		body += "\n" + rateStyle.Render(fmt.Sprintf("%.0f/s", rate))
	} else {
		body += "\n" + rateStyle.Render(" ")
	}
	return tileStyle.Render(body)
}
