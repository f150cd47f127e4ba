// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/Thermoquad/mirrorlink/pkg/link"
	"github.com/Thermoquad/mirrorlink/pkg/mirrorlink"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const progressBarWidth = 40

// Messages
type progressMsg mirrorlink.Progress

type transferDoneMsg struct {
	result *mirrorlink.TransferResult
	err    error
}

// sendModel shows one transfer in progress
type sendModel struct {
	spinner    spinner.Model
	connInfo   string
	payloadLen int
	fault      *mirrorlink.FaultInjector
	stats      *mirrorlink.Statistics
	progress   mirrorlink.Progress
	peakUp     float64
	peakDown   float64
	done       *transferDoneMsg
	quitting   bool
}

func newSendModel(connInfo string, payloadLen int, fault *mirrorlink.FaultInjector, stats *mirrorlink.Statistics) sendModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	return sendModel{
		spinner:    s,
		connInfo:   connInfo,
		payloadLen: payloadLen,
		fault:      fault,
		stats:      stats,
	}
}

func (m sendModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m sendModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case progressMsg:
		m.progress = mirrorlink.Progress(msg)
		switch m.progress.Phase {
		case mirrorlink.PhaseSending:
			m.peakUp = max(m.peakUp, m.progress.Rate)
		case mirrorlink.PhaseReadback:
			m.peakDown = max(m.peakDown, m.progress.Rate)
		}

	case transferDoneMsg:
		m.done = &msg
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m sendModel) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("MIRRORLINK - SEND"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | %d bytes | Press 'q' to abort", m.connInfo, m.payloadLen)))
	s.WriteString("\n")
	if m.fault != nil {
		s.WriteString(warningStyle.Render("Fault: " + m.fault.String()))
		s.WriteString("\n")
	}
	s.WriteString("\n")

	switch {
	case m.done != nil && m.done.err != nil:
		s.WriteString(errorStyle.Render("✗ " + m.done.err.Error()))
	case m.done != nil:
		s.WriteString(valueStyle.Render("✓ Transfer complete"))
	case m.quitting:
		s.WriteString(warningStyle.Render("Aborting..."))
	default:
		s.WriteString(m.spinner.View() + " " + labelStyle.Render(m.progress.Phase.String()))
		if m.progress.Phase == mirrorlink.PhaseSending {
			s.WriteString("  " + renderBar(m.progress.Done, m.progress.Total))
			s.WriteString(headerStyle.Render(fmt.Sprintf(" %d/%d", m.progress.Done, m.progress.Total)))
		} else if m.progress.Phase == mirrorlink.PhaseReadback {
			s.WriteString(headerStyle.Render(fmt.Sprintf("  %d bytes", m.progress.Done)))
		}
	}
	s.WriteString("\n\n")

	snap := m.stats.Snapshot()
	var content strings.Builder
	content.WriteString(fmt.Sprintf("%s %s   %s %s\n",
		labelStyle.Render("Bytes Up:"), valueStyle.Render(fmt.Sprintf("%d", snap.BytesUp)),
		labelStyle.Render("Bytes Down:"), valueStyle.Render(fmt.Sprintf("%d", snap.BytesDown)),
	))
	content.WriteString(fmt.Sprintf("%s %s   %s %s\n",
		labelStyle.Render("Avg Up:"), valueStyle.Render(fmt.Sprintf("%.1f B/s", snap.AverageUp)),
		labelStyle.Render("Avg Down:"), valueStyle.Render(fmt.Sprintf("%.1f B/s", snap.AverageDown)),
	))
	content.WriteString(fmt.Sprintf("%s %s   %s %s",
		labelStyle.Render("Peak Up:"), valueStyle.Render(fmt.Sprintf("%.1f B/s", m.peakUp)),
		labelStyle.Render("Peak Down:"), valueStyle.Render(fmt.Sprintf("%.1f B/s", m.peakDown)),
	))
	s.WriteString(boxStyle.Render(content.String()))
	s.WriteString("\n")

	return s.String()
}

func renderBar(done, total int) string {
	filled := 0
	if total > 0 {
		filled = done * progressBarWidth / total
	}
	filled = min(filled, progressBarWidth)
	bar := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(strings.Repeat("█", filled))
	return bar + lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render(strings.Repeat("░", progressBarWidth-filled))
}

// runSendTUI runs one transfer behind the progress display
func runSendTUI(ctx context.Context, drv link.Driver, connInfo string, payload []byte,
	fault *mirrorlink.FaultInjector, stats *mirrorlink.Statistics) (*mirrorlink.TransferResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newSendModel(connInfo, len(payload), fault, stats))

	outcome := make(chan transferDoneMsg, 1)
	go func() {
		result, err := transferOnce(ctx, drv, payload, fault, stats, func(pr mirrorlink.Progress) {
			p.Send(progressMsg(pr))
		})
		msg := transferDoneMsg{result: result, err: err}
		outcome <- msg
		p.Send(msg)
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-outcome
		return nil, fmt.Errorf("TUI error: %w", err)
	}

	// Aborting cancels the settle delay and handshake; a frame in flight
	// finishes or times out
	cancel()
	done := <-outcome
	return done.result, done.err
}
