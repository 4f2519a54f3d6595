// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Alberto Restifo

package cmd

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.bug.st/serial"

	"github.com/albertorestifo/trenino/pkg/cablink"
)

var watchBaudRate int

var watchCmd = &cobra.Command{
	Use:   "watch <port>",
	Short: "Live view of cab board traffic",
	Long: `Full-screen live view of one cab board: last value per pin, message
rates, and a scrolling event log. Handy while calibrating levers.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().IntVarP(&watchBaudRate, "baud", "b", 115200, "Baud rate")
	rootCmd.AddCommand(watchCmd)
}

// watchLogEntry is one line of the scrolling event log.
type watchLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// watchModel is the TUI state.
type watchModel struct {
	portName string
	baudRate int

	pins      map[uint8]uint16
	boardName string
	heartbeat time.Time

	totalMessages uint64
	decodeErrors  uint64
	droppedFrames uint64
	rate          float64
	windowCount   uint64

	eventLog      []watchLogEntry
	maxLogEntries int

	width    int
	height   int
	quitting bool
}

type watchTickMsg time.Time

type watchDataMsg struct {
	msg       cablink.Message
	decodeErr error
	dropped   uint64
}

func initialWatchModel(portName string, baudRate int) watchModel {
	return watchModel{
		portName:      portName,
		baudRate:      baudRate,
		pins:          make(map[uint8]uint16),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(
		watchTickCmd(),
		tea.EnterAltScreen,
	)
}

func watchTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case watchTickMsg:
		m.rate = float64(m.windowCount)
		m.windowCount = 0
		return m, watchTickCmd()

	case watchDataMsg:
		m.droppedFrames = msg.dropped

		if msg.msg == nil && msg.decodeErr == nil {
			// Drop-count refresh carrying no decoded message.
			break
		}

		if msg.decodeErr != nil {
			m.decodeErrors++
			m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", msg.decodeErr), true)
			break
		}

		m.totalMessages++
		m.windowCount++

		switch v := msg.msg.(type) {
		case cablink.InputValue:
			m.pins[v.Pin] = v.Value
		case cablink.Heartbeat:
			m.heartbeat = time.Now()
		case cablink.Identity:
			m.boardName = v.Name
			m.addLogEntry(fmt.Sprintf("board identified: %s (protocol v%d)", v.Name, v.Version), false)
		case cablink.CalibrationError:
			m.addLogEntry(fmt.Sprintf("CALIBRATION ERROR on pin %d", v.Pin), true)
		case cablink.EncoderError:
			m.addLogEntry(fmt.Sprintf("ENCODER ERROR on pin %d", v.Pin), true)
		default:
			m.addLogEntry(cablink.FormatMessage(msg.msg), false)
		}
	}

	return m, nil
}

func (m *watchModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, watchLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m watchModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

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
	s.WriteString(titleStyle.Render("TRENINO - BOARD WATCH"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("Port: %s @ %d baud | Press 'q' to quit",
		m.portName, m.baudRate)))
	s.WriteString("\n\n")

	// Board status
	status := strings.Builder{}
	name := m.boardName
	if name == "" {
		name = "(not identified)"
	}
	status.WriteString(fmt.Sprintf("%s %s   ", labelStyle.Render("Board:"), valueStyle.Render(name)))
	if m.heartbeat.IsZero() {
		status.WriteString(warningStyle.Render("no heartbeat yet"))
	} else {
		status.WriteString(fmt.Sprintf("%s %s",
			labelStyle.Render("Heartbeat:"),
			valueStyle.Render(fmt.Sprintf("%.1fs ago", time.Since(m.heartbeat).Seconds()))))
	}
	status.WriteString("\n")

	status.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		labelStyle.Render("Messages:"), valueStyle.Render(fmt.Sprintf("%d", m.totalMessages)),
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.0f msg/s", m.rate)),
		labelStyle.Render("Errors:"), func() string {
			total := m.decodeErrors + m.droppedFrames
			if total > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", total))
			}
			return valueStyle.Render("0")
		}(),
	))

	s.WriteString(boxStyle.Render(status.String()))
	s.WriteString("\n\n")

	// Pin values
	if len(m.pins) > 0 {
		s.WriteString(labelStyle.Render("Inputs:"))
		s.WriteString("\n")

		pinContent := strings.Builder{}
		for pin := 0; pin < 256; pin++ {
			value, ok := m.pins[uint8(pin)]
			if !ok {
				continue
			}
			pinContent.WriteString(fmt.Sprintf("%s %s\n",
				labelStyle.Render(fmt.Sprintf("Pin %3d:", pin)),
				valueStyle.Render(fmt.Sprintf("%5d", value)),
			))
		}
		s.WriteString(boxStyle.Render(strings.TrimRight(pinContent.String(), "\n")))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - len(m.pins) - 12
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(strings.TrimRight(logContent.String(), "\n")))

	return s.String()
}

func runWatch(cmd *cobra.Command, args []string) error {
	port, err := serial.Open(args[0], &serial.Mode{
		BaudRate: watchBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", args[0], err)
	}
	defer port.Close()

	program := tea.NewProgram(initialWatchModel(args[0], watchBaudRate))

	// Reader goroutine feeding decoded messages into the TUI.
	go func() {
		decoder := cablink.NewFrameDecoder()
		buf := make([]byte, 256)
		var reported uint64

		for {
			n, err := port.Read(buf)
			if err != nil {
				program.Quit()
				return
			}

			payloads := decoder.Push(buf[:n])
			for _, payload := range payloads {
				msg, err := cablink.Decode(payload)
				program.Send(watchDataMsg{msg: msg, decodeErr: err, dropped: decoder.Dropped()})
			}

			// A chunk of nothing but malformed frames still moves the
			// drop counter; report it without waiting for a good message.
			if len(payloads) == 0 && decoder.Dropped() != reported {
				program.Send(watchDataMsg{dropped: decoder.Dropped()})
			}
			reported = decoder.Dropped()
		}
	}()

	_, err = program.Run()
	return err
}
