package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode != inputNone {
		return m.handleInputKey(msg)
	}
	if m.showHelp {
		if key.Matches(msg, m.keys.Quit) && msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.Up):
		return m.moveSelection(-1)
	case key.Matches(msg, m.keys.Down):
		return m.moveSelection(1)
	case key.Matches(msg, m.keys.PageUp):
		return m.moveSelection(-max(1, m.layout().listRows))
	case key.Matches(msg, m.keys.PageDown):
		return m.moveSelection(max(1, m.layout().listRows))
	case key.Matches(msg, m.keys.Top):
		return m.moveSelection(-len(m.photos))
	case key.Matches(msg, m.keys.Bottom):
		return m.moveSelection(len(m.photos))

	case key.Matches(msg, m.keys.Similar):
		p, ok := m.selectedPhoto()
		if !ok {
			return m, nil
		}
		ref := p.Path
		return m.startOp("find similar", func(context.Context) (string, error) {
			return "", m.session.FindSimilar(ref)
		})
	case key.Matches(msg, m.keys.ThresholdUp):
		return m.adjustThreshold(5)
	case key.Matches(msg, m.keys.ThresholdDown):
		return m.adjustThreshold(-5)
	case key.Matches(msg, m.keys.Exit):
		if m.snapshot.Similarity.Active {
			m.session.ExitSimilar()
			return m, fetchSnapshotCmd(m.store)
		}
		return m, nil
	case key.Matches(msg, m.keys.Index):
		return m.startOp("index", func(ctx context.Context) (string, error) {
			return "indexing started", m.session.TriggerIndexing(ctx)
		})

	case key.Matches(msg, m.keys.Open):
		return m.beginInput(inputFolder, "open ", m.snapshot.Folder)
	case key.Matches(msg, m.keys.Search):
		return m.beginInput(inputSearch, "/", m.snapshot.Filter.Search)
	case key.Matches(msg, m.keys.Back):
		return m.startOp("back", func(ctx context.Context) (string, error) {
			return m.session.Back(ctx)
		})
	case key.Matches(msg, m.keys.Forward):
		return m.startOp("forward", func(ctx context.Context) (string, error) {
			return m.session.Forward(ctx)
		})
	case key.Matches(msg, m.keys.Tag):
		return m.startOp("tag", func(ctx context.Context) (string, error) {
			tag, err := m.session.CycleTag(ctx)
			if tag == "" {
				return "all tags", err
			}
			return "tag " + tag, err
		})
	case key.Matches(msg, m.keys.Sort):
		return m.startOp("sort", func(ctx context.Context) (string, error) {
			mode, err := m.session.CycleSort(ctx)
			return "sorted by " + mode.Label, err
		})
	case key.Matches(msg, m.keys.Reload):
		return m.startOp("reload", func(ctx context.Context) (string, error) {
			return "reloaded", m.session.Reload(ctx)
		})

	case key.Matches(msg, m.keys.Logs):
		m.showLogs = !m.showLogs
		m.resizeLogView()
		m.clampSelection()
		var cmds []tea.Cmd
		if m.showLogs && m.logTail != nil {
			cmds = append(cmds, loadLogsCmd(m.logTail))
		}
		cmds = append(cmds, m.requestVisible())
		return m, tea.Batch(cmds...)
	case key.Matches(msg, m.keys.Theme):
		name := NextTheme(m.theme.Name)
		m.theme = GetTheme(name)
		m.applyTheme()
		m.session.SetTheme(name)
		m.flash = flash{text: "theme " + name}
		return m, nil
	}
	return m, nil
}

func (m Model) moveSelection(delta int) (tea.Model, tea.Cmd) {
	if len(m.photos) == 0 {
		return m, nil
	}
	m.selected += delta
	m.clampSelection()
	m.refreshPreview()
	cmd := m.requestVisible()
	return m, cmd
}

func (m Model) adjustThreshold(delta int) (tea.Model, tea.Cmd) {
	percent, ok := m.session.AdjustThreshold(delta)
	if !ok {
		return m, nil
	}
	m.flash = flash{text: fmt.Sprintf("threshold %d%%", percent)}
	return m, fetchSnapshotCmd(m.store)
}

func (m Model) beginInput(mode inputMode, prompt, value string) (tea.Model, tea.Cmd) {
	m.mode = mode
	m.input.Prompt = prompt
	m.input.SetValue(value)
	m.input.CursorEnd()
	cmd := m.input.Focus()
	return m, cmd
}

// handleInputKey routes keys to the prompt while it is open.
func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.mode = inputNone
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		mode := m.mode
		value := strings.TrimSpace(m.input.Value())
		m.mode = inputNone
		m.input.Blur()
		switch mode {
		case inputFolder:
			if value == "" {
				return m, nil
			}
			return m.startOp("open", func(ctx context.Context) (string, error) {
				return "", m.session.OpenFolder(ctx, value)
			})
		case inputSearch:
			return m.startOp("search", func(ctx context.Context) (string, error) {
				return "", m.session.SetSearch(ctx, value)
			})
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}
