// Package tui renders the daily timeline and drives every user-facing
// operation: routine paste, task toggles, notification settings, data
// management and cloud sign-in.
package tui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jrazmi/lexprep/core/identity"
	"github.com/jrazmi/lexprep/core/notify"
	"github.com/jrazmi/lexprep/core/repositories/taskrepo"
	"github.com/jrazmi/lexprep/core/routine"
	"github.com/jrazmi/lexprep/core/taskservice"
	"github.com/jrazmi/lexprep/sdk/logger"
	"github.com/jrazmi/lexprep/sdk/validation"
)

const (
	headerHeight = 3
	footerHeight = 2
)

type mode int

const (
	modeNormal mode = iota
	modeAdd
	modeRoutine
	modeImport
	modeConfirmClear
)

const (
	tabToday = iota
	tabSettings
	tabData
)

type (
	tickMsg     time.Time
	authDoneMsg struct{ err error }
)

// Model is the root bubbletea model.
type Model struct {
	log       *logger.Logger
	svc       *taskservice.Service
	gate      *identity.Gate // nil when the cloud backend is disabled
	scheduler *notify.Scheduler
	settings  *notify.SettingsStore

	tabs     tabs
	viewport viewport.Model
	input    textinput.Model

	mode    mode
	cursor  int
	tasks   []taskrepo.Task
	routine []string
	notif   notify.Settings

	status    string
	statusErr bool
	loaded    bool
	authBusy  bool
}

func New(log *logger.Logger, svc *taskservice.Service, gate *identity.Gate, scheduler *notify.Scheduler, settings *notify.SettingsStore) *Model {
	input := textinput.NewModel()
	input.Prompt = "> "
	input.Width = 60

	return &Model{
		log:       log,
		svc:       svc,
		gate:      gate,
		scheduler: scheduler,
		settings:  settings,
		tabs:      newTabs([]string{"Today", "Settings", "Data"}),
		viewport:  viewport.Model{},
		input:     input,
		notif:     settings.Load(),
	}
}

func (m *Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - headerHeight - footerHeight
		m.tabs.Width = msg.Width
		if !m.loaded {
			m.loaded = true
			m.refresh()
			if !m.settings.HasSeenPrompt() {
				m.info("Reminders are available. Press 2 for notification settings.")
			}
		}

	case tickMsg:
		m.refresh()
		return m, tick()

	case authDoneMsg:
		m.authBusy = false
		if msg.err != nil {
			m.fail(m.gate.Err())
		} else if ident := m.gate.Identity(); ident != nil {
			m.info("Signed in as " + ident.Email)
		}
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEsc:
			cmd = m.escape()
		default:
			cmd = m.keyUpdate(msg)
		}
	}

	m.render()
	return m, cmd
}

// refresh pulls current state from the service layer. The tick drives
// it once a second so remote watch updates and auto-cleared errors show
// up without a keypress.
func (m *Model) refresh() {
	m.tasks = m.svc.Tasks()
	m.setCursor(m.cursor)

	if errMsg := m.svc.LastError(); errMsg != "" {
		m.fail(errMsg)
	}
	if m.gate != nil {
		if errMsg := m.gate.Err(); errMsg != "" {
			m.fail(errMsg)
		}
	}

	if m.svc.ShouldOfferSync() {
		m.svc.MarkSyncOffered()
		m.info("You have tasks on this device. Press 3 then y to sync them to the cloud.")
	}
}

// escape leaves any input mode. Routine mode commits its collected
// lines on the way out.
func (m *Model) escape() tea.Cmd {
	if m.mode == modeRoutine && len(m.routine) > 0 {
		m.commitRoutine()
	}
	m.mode = modeNormal
	m.input.SetValue("")
	m.routine = nil
	return nil
}

func (m *Model) keyUpdate(msg tea.KeyMsg) tea.Cmd {
	switch m.mode {
	case modeAdd:
		if msg.Type == tea.KeyEnter {
			m.addFromLine(m.input.Value())
			m.mode = modeNormal
			m.input.SetValue("")
			return nil
		}
	case modeRoutine:
		if msg.Type == tea.KeyEnter {
			if line := strings.TrimSpace(m.input.Value()); line != "" {
				m.routine = append(m.routine, line)
			}
			m.input.SetValue("")
			return nil
		}
	case modeImport:
		if msg.Type == tea.KeyEnter {
			m.importFromPath(m.input.Value())
			m.mode = modeNormal
			m.input.SetValue("")
			return nil
		}
	case modeConfirmClear:
		switch msg.String() {
		case "y":
			if err := m.svc.ClearLocalData(); err == nil {
				m.info("Local data cleared")
			}
		}
		m.mode = modeNormal
		return nil
	}

	if m.mode != modeNormal {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return cmd
	}

	switch msg.String() {
	case "1":
		m.setTab(tabToday)
	case "2":
		m.setTab(tabSettings)
	case "3":
		m.setTab(tabData)
	case "q":
		return tea.Quit
	}

	switch m.tabs.Value() {
	case tabToday:
		return m.todayKeys(msg)
	case tabSettings:
		m.settingsKeys(msg)
	case tabData:
		return m.dataKeys(msg)
	}
	return nil
}

func (m *Model) todayKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "j":
		m.setCursor(m.cursor + 1)
	case "k":
		m.setCursor(m.cursor - 1)
	case "g":
		m.setCursor(0)
	case "G":
		m.setCursor(len(m.tasks) - 1)
	case "t", " ":
		m.toggleAtCursor()
	case "x", tea.KeyDelete.String():
		m.deleteAtCursor()
	case "o", "a":
		m.mode = modeAdd
		m.input.Placeholder = "9:00 AM - 10:30 AM Study session"
		m.input.SetValue("")
		m.input.Focus()
	case "p":
		m.mode = modeRoutine
		m.routine = nil
		m.input.Placeholder = "paste routine lines, Enter after each, Esc to finish"
		m.input.SetValue("")
		m.input.Focus()
	}
	return nil
}

func (m *Model) settingsKeys(msg tea.KeyMsg) {
	switch msg.String() {
	case " ", "t":
		m.notif.Enabled = !m.notif.Enabled
		m.saveSettings()
	case "+", "=":
		m.notif.ReminderOffset = nextOffset(m.notif.ReminderOffset, 1)
		m.saveSettings()
	case "-":
		m.notif.ReminderOffset = nextOffset(m.notif.ReminderOffset, -1)
		m.saveSettings()
	}
}

func (m *Model) dataKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "e":
		path, err := m.svc.ExportData()
		if err == nil {
			m.info("Exported to " + path)
		}
	case "i":
		m.mode = modeImport
		m.input.Placeholder = "path to lexprep-backup-....json"
		m.input.SetValue("")
		m.input.Focus()
	case "c":
		m.mode = modeConfirmClear
	case "y":
		if err := m.svc.SyncLocalToCloud(context.Background()); err == nil {
			m.info("Synced local tasks to the cloud")
		}
	case "b":
		if m.gate != nil && m.gate.Identity() != nil {
			guest := !m.svc.GuestMode()
			m.svc.SetGuestMode(context.Background(), guest)
		}
	case "s":
		return m.authCmd()
	}
	return nil
}

// authCmd runs sign-in or sign-out off the UI loop; the browser round
// trip can take a while.
func (m *Model) authCmd() tea.Cmd {
	if m.gate == nil {
		m.fail("Cloud sync is not configured")
		return nil
	}
	if m.authBusy {
		return nil
	}
	m.authBusy = true

	signedIn := m.gate.Identity() != nil
	return func() tea.Msg {
		ctx := context.Background()
		if signedIn {
			return authDoneMsg{err: m.gate.SignOut(ctx)}
		}
		return authDoneMsg{err: m.gate.SignIn(ctx)}
	}
}

func (m *Model) addFromLine(line string) {
	inputs := routine.Parse(line, time.Now())
	if len(inputs) == 0 {
		m.fail("Could not read a time from that line")
		return
	}
	if err := m.svc.AddTask(context.Background(), inputs[0]); err == nil {
		m.info("Added " + inputs[0].Content)
		m.rearm()
	}
}

func (m *Model) commitRoutine() {
	inputs := routine.Parse(strings.Join(m.routine, "\n"), time.Now())
	if len(inputs) == 0 {
		m.fail("No timed lines found in the routine")
		return
	}
	if err := m.svc.AddTasks(context.Background(), inputs); err == nil {
		m.info(fmt.Sprintf("Added %d tasks from routine", len(inputs)))
		m.rearm()
	}
}

func (m *Model) importFromPath(path string) {
	bs, err := os.ReadFile(strings.TrimSpace(path))
	if err != nil {
		m.fail("Could not read backup file")
		return
	}
	count, err := m.svc.ImportData(context.Background(), bs)
	if err == nil {
		m.info(fmt.Sprintf("Imported %d tasks", count))
		m.rearm()
	}
}

func (m *Model) toggleAtCursor() {
	task, ok := m.atCursor()
	if !ok {
		return
	}
	update := taskrepo.UpdateTask{Completed: validation.BoolPtr(!task.Completed)}
	if err := m.svc.UpdateTask(context.Background(), task.ID, update); err == nil {
		m.rearm()
	}
}

func (m *Model) deleteAtCursor() {
	task, ok := m.atCursor()
	if !ok {
		return
	}
	if err := m.svc.DeleteTask(context.Background(), task.ID); err == nil {
		m.info("Deleted " + task.Content)
		m.rearm()
	}
}

func (m *Model) atCursor() (taskrepo.Task, bool) {
	if m.cursor < 0 || m.cursor >= len(m.tasks) {
		return taskrepo.Task{}, false
	}
	return m.tasks[m.cursor], true
}

func (m *Model) saveSettings() {
	if err := m.settings.Save(m.notif); err != nil {
		m.fail("Failed to save notification settings")
		return
	}
	m.scheduler.UpdateSettings(m.notif)
	m.rearm()
}

// rearm recomputes the alarm set after any change to the task list or
// the notification settings.
func (m *Model) rearm() {
	m.scheduler.Schedule(m.svc.Tasks())
}

func (m *Model) setTab(i int) {
	m.tabs.Set(i)
	m.setCursor(0)
	if i == tabSettings && !m.settings.HasSeenPrompt() {
		if err := m.settings.MarkPromptSeen(); err != nil {
			m.log.Warn("marking notification prompt seen failed", "error", err)
		}
	}
}

func (m *Model) setCursor(value int) {
	size := len(m.tasks)
	m.cursor = clamp(value, 0, max(size-1, 0))

	if m.cursor >= m.viewport.YOffset+m.viewport.Height {
		m.viewport.YOffset = m.cursor - m.viewport.Height + 1
	}
	if m.cursor < m.viewport.YOffset {
		m.viewport.YOffset = m.cursor
	}
}

func (m *Model) info(msg string) {
	m.status = msg
	m.statusErr = false
}

func (m *Model) fail(msg string) {
	m.status = msg
	m.statusErr = true
}

func (m *Model) render() {
	switch m.tabs.Value() {
	case tabSettings:
		m.viewport.SetContent(m.viewSettings())
	case tabData:
		m.viewport.SetContent(m.viewData())
	default:
		m.viewport.SetContent(m.viewTasks())
	}
}

func (m *Model) View() string {
	m.tabs.Info = m.identityLabel()
	return m.tabs.View() + m.viewport.View() + "\n" + m.statusLine()
}

func (m *Model) viewTasks() string {
	if m.svc.Loading() {
		return statusInfo.Render("Loading tasks...")
	}
	if len(m.tasks) == 0 {
		return statusInfo.Render("No tasks today. Press p to paste a routine or o to add one.")
	}

	var b strings.Builder
	for i, task := range m.tasks {
		title := taskTitle
		if i == m.cursor {
			title = title.Copy().Background(faded)
		}
		if task.Completed {
			title = title.Copy().Strikethrough(true)
		}

		clock := task.Time
		if task.EndTime != nil {
			clock += "–" + *task.EndTime
		}

		b.WriteString(taskTime.Render(fmt.Sprintf("%13s", clock)))
		b.WriteString("  ")
		b.WriteString(tagStyle(task.Tag).Render(fmt.Sprintf("%-8s", task.Tag)))
		b.WriteString("  ")
		b.WriteString(title.Render(task.Content))
		if task.Completed {
			b.WriteString(lipgloss.NewStyle().Foreground(green).Render("  ✓"))
		}
		b.WriteString("\n")
	}

	if m.mode == modeAdd || m.mode == modeRoutine {
		b.WriteString("\n" + m.input.View() + "\n")
		if m.mode == modeRoutine {
			b.WriteString(statusInfo.Render(fmt.Sprintf("%d lines collected, Esc to add them", len(m.routine))) + "\n")
		}
	}
	return b.String()
}

func (m *Model) viewSettings() string {
	enabled := "off"
	if m.notif.Enabled {
		enabled = "on"
	}

	var b strings.Builder
	b.WriteString(taskTitle.Render("Notification settings") + "\n\n")
	b.WriteString(fmt.Sprintf("  Reminders:        %s   (space toggles)\n", enabled))
	b.WriteString(fmt.Sprintf("  Remind me before: %d min   (+/- adjusts)\n\n", m.notif.ReminderOffset))

	offsets := make([]string, len(notify.ReminderOffsetOptions))
	for i, o := range notify.ReminderOffsetOptions {
		label := fmt.Sprintf("%dm", o)
		if o == m.notif.ReminderOffset {
			label = activeTab.Render(label)
		} else {
			label = inactiveTab.Render(label)
		}
		offsets[i] = label
	}
	b.WriteString("  " + strings.Join(offsets, " ") + "\n\n")
	b.WriteString(fmt.Sprintf("  Alarms armed: %d\n", m.scheduler.Armed()))
	return b.String()
}

func (m *Model) viewData() string {
	var b strings.Builder
	b.WriteString(taskTitle.Render("Your data") + "\n\n")
	b.WriteString(fmt.Sprintf("  Backend:    %s\n", m.svc.Backend()))
	b.WriteString(fmt.Sprintf("  Local data: %v\n\n", m.svc.HasLocalData()))

	b.WriteString("  e  export backup file\n")
	b.WriteString("  i  import backup file\n")
	b.WriteString("  c  clear local data\n")
	if m.gate != nil {
		if ident := m.gate.Identity(); ident != nil {
			b.WriteString("  s  sign out of " + ident.Email + "\n")
			b.WriteString("  y  sync local tasks to cloud\n")
			b.WriteString("  b  switch local/cloud backend\n")
		} else {
			b.WriteString("  s  sign in with Google\n")
		}
	}

	if m.mode == modeImport {
		b.WriteString("\n" + m.input.View() + "\n")
	}
	if m.mode == modeConfirmClear {
		b.WriteString("\n" + statusError.Render("Clear ALL local tasks? y/n") + "\n")
	}
	return b.String()
}

func (m *Model) statusLine() string {
	help := helpStyle.Render("1/2/3 tabs ∙ j/k move ∙ space done ∙ p routine ∙ q quit")
	if m.status == "" {
		return help
	}
	style := statusInfo
	if m.statusErr {
		style = statusError
	}
	return style.Render(m.status)
}

func (m *Model) identityLabel() string {
	if m.authBusy {
		return "signing in..."
	}
	if m.gate == nil {
		return "local only"
	}
	if m.gate.Loading() {
		return "..."
	}
	if ident := m.gate.Identity(); ident != nil {
		name := ident.DisplayName
		if name == "" {
			name = ident.Email
		}
		return lipgloss.NewStyle().Foreground(green).Render(name)
	}
	return inactiveTab.Render("guest")
}

func nextOffset(current, direction int) int {
	options := notify.ReminderOffsetOptions
	for i, o := range options {
		if o == current {
			return options[clamp(i+direction, 0, len(options)-1)]
		}
	}
	return options[0]
}

func clamp(v, low, high int) int {
	return min(high, max(low, v))
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
