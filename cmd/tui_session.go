package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	uitk "agriassist-cli/internal/tui"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/term"
)

const gap = "\n\n"

const assistantLabel = "🌾 AgriAssist:"

const (
	paneChat    = "chat"
	paneAnalyze = "analyze"
	paneTips    = "tips"
)

var (
	tipsCrops   = []string{"maize", "beans", "tomatoes", "potatoes", "coffee", "tea"}
	tipsSeasons = []string{"current", "rainy", "dry", "planting", "harvest"}
)

// Message is one transcript entry. Roles: "user", "bot", and "client" for
// local notices that are never sent anywhere.
type Message struct {
	Role    string
	Content string
}

type (
	chatReplyMsg      struct{ content string }
	chatFailedMsg     struct{ err error }
	analysisDoneMsg   struct{ result *CropAnalysis }
	analysisFailedMsg struct{ err error }
	tipsDoneMsg       struct{ tips *TipsPayload }
	tipsFailedMsg     struct{ err error }
	serverHealthMsg   struct{ health *HealthPayload }
)

var assistCtx *SessionContext

// runAssistTUI starts the interactive Bubble Tea session with the chat,
// analyze and tips panes.
func runAssistTUI() {
	assistCtx = newDefaultContextFromGlobals()

	m := newAssistModel(assistCtx)
	p := tea.NewProgram(m)

	SetTUIMode(p)
	defer ClearTUIMode()

	stopWatcher := StartConfigWatcherForSession(p.Send)
	defer stopWatcher()

	if _, err := p.Run(); err != nil {
		OutputError("Error running session: %v", err)
	}
}

type assistModel struct {
	ctx   *SessionContext
	tabs  uitk.TabBarModel
	spin  spinner.Model
	toast uitk.ToastModel

	// chat pane
	textarea  textarea.Model
	viewport  viewport.Model
	messages  []Message
	history   []string
	histIndex int
	chatBusy  bool

	// analyze pane
	pathInput     textinput.Model
	locationInput textinput.Model
	analyzeFocus  int // 0 = path field, 1 = location field
	imagePath     string
	imageInfo     string
	imageSelected bool
	analysisText  string
	analyzeErr    string
	analyzeBusy   bool

	// tips pane
	cropIdx    int
	seasonIdx  int
	tipsText   string
	tipsErr    string
	tipsBusy   bool

	serverHealth *HealthPayload
	width        int
	termHeight   int
}

func newAssistModel(ctx *SessionContext) assistModel {
	ta := textarea.New()
	ta.Placeholder = "Ask about your crops..."
	ta.Focus()
	ta.Prompt = "> "
	ta.SetWidth(30)
	ta.SetHeight(1)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	vp := viewport.New(30, 5)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	pathInput := textinput.New()
	pathInput.Placeholder = "path to a crop photo, e.g. ./leaf.jpg"
	pathInput.Focus()

	locationInput := textinput.New()
	locationInput.Placeholder = "location (default: Kenya)"
	locationInput.SetValue(ctx.Location)

	width, _, _ := term.GetSize(uintptr(os.Stdout.Fd()))

	messages := []Message{{Role: "client", Content: "Send a message or type '/help' for commands. Tab switches panes."}}

	tabs := uitk.NewTabBarModel([]uitk.Tab{
		{ID: paneChat, Title: "💬 Chat"},
		{ID: paneAnalyze, Title: "📷 Analyze"},
		{ID: paneTips, Title: "🌱 Tips"},
	})

	m := assistModel{
		ctx:           ctx,
		tabs:          tabs,
		spin:          s,
		toast:         uitk.NewToastModel(),
		textarea:      ta,
		viewport:      vp,
		messages:      messages,
		pathInput:     pathInput,
		locationInput: locationInput,
		width:         width,
	}
	m.setViewportContent()
	return m
}

func (m assistModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, textarea.Blink,
		checkHealthCmd(m.ctx, getHTTPClientWithTimeout(3*time.Second)))
}

// checkHealthCmd probes the server with the given client, normally one with
// a short timeout so the status bar fills in without stalling startup.
func checkHealthCmd(ctx *SessionContext, client HTTPClient) tea.Cmd {
	probe := *ctx
	probe.HTTPClient = client
	return func() tea.Msg {
		health, err := checkServerHealth(&probe)
		if err != nil {
			logDebug(fmt.Sprintf("health check failed: %v", err))
		}
		return serverHealthMsg{health: health}
	}
}

// busy reports whether any flow has a request in flight. The spinner in the
// status bar is the loading indicator; it disappears only when every flow
// has completed, succeeded or failed.
func (m assistModel) busy() bool {
	return m.chatBusy || m.analyzeBusy || m.tipsBusy
}

// submitChat appends the user's entry and starts the request. Blank input
// and overlapping submissions are rejected with no state change. The session
// state is snapshotted here so the request goroutine never reads fields the
// UI loop may be writing.
func (m *assistModel) submitChat(text string) tea.Cmd {
	text = strings.TrimSpace(text)
	if text == "" || m.chatBusy {
		return nil
	}
	m.history = append(m.history, text)
	m.histIndex = len(m.history)
	m.messages = append(m.messages, Message{Role: "user", Content: text})
	m.textarea.SetValue("")
	m.chatBusy = true
	snapshot := *m.ctx
	return func() tea.Msg {
		reply, err := sendChatRequest(text, &snapshot)
		if err != nil {
			return chatFailedMsg{err: err}
		}
		return chatReplyMsg{content: reply}
	}
}

func (m *assistModel) applyChatReply(content string) {
	m.chatBusy = false
	m.messages = append(m.messages, Message{Role: "bot", Content: content})
}

// applyChatFailure appends the fixed fallback entry. Raw error details go to
// the debug log only.
func (m *assistModel) applyChatFailure(err error) {
	m.chatBusy = false
	logDebug(fmt.Sprintf("chat request failed: %v", err))
	m.messages = append(m.messages, Message{Role: "bot", Content: chatFallbackMessage})
}

// selectImage validates and stages a file for analysis. Non-image paths
// leave the previous state unchanged and report false.
func (m *assistModel) selectImage(path string) bool {
	path = strings.TrimSpace(path)
	if path == "" {
		return false
	}
	mime, ok := detectImageType(path)
	if !ok {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	m.imagePath = path
	m.imageInfo = fmt.Sprintf("%s (%s, %s)", info.Name(), mime, formatBytes(info.Size()))
	m.imageSelected = true
	m.analysisText = ""
	m.analyzeErr = ""
	return true
}

// removeImage returns the analyze pane to its empty state.
func (m *assistModel) removeImage() {
	m.imagePath = ""
	m.imageInfo = ""
	m.imageSelected = false
	m.analysisText = ""
	m.analyzeErr = ""
	m.pathInput.SetValue("")
}

func (m assistModel) canAnalyze() bool {
	return m.imageSelected && !m.analyzeBusy
}

func (m *assistModel) submitAnalysis() tea.Cmd {
	if !m.canAnalyze() {
		return nil
	}
	m.analyzeBusy = true
	m.analyzeErr = ""
	path := m.imagePath
	loc := m.locationInput.Value()
	snapshot := *m.ctx
	return func() tea.Msg {
		result, err := analyzeCrop(path, loc, &snapshot)
		if err != nil {
			return analysisFailedMsg{err: err}
		}
		return analysisDoneMsg{result: result}
	}
}

func (m *assistModel) submitTips() tea.Cmd {
	if m.tipsBusy {
		return nil
	}
	m.tipsBusy = true
	m.tipsErr = ""
	crop := tipsCrops[m.cropIdx]
	season := tipsSeasons[m.seasonIdx]
	snapshot := *m.ctx
	return func() tea.Msg {
		tips, err := fetchFarmingTips(crop, season, &snapshot)
		if err != nil {
			return tipsFailedMsg{err: err}
		}
		return tipsDoneMsg{tips: tips}
	}
}

// toggleLanguage flips the request language flag and returns the new label.
// Already-rendered content is left untouched.
func (m *assistModel) toggleLanguage() string {
	m.ctx.ToggleLanguage()
	return m.ctx.LanguageLabel()
}

func (m assistModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	m.toast, cmd = m.toast.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}
	m.spin, cmd = m.spin.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}
	m.tabs, cmd = m.tabs.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		headerHeight := lipgloss.Height(m.tabs.View())
		footerHeight := lipgloss.Height(m.renderChatInput()) + 1
		newHeight := msg.Height - footerHeight - headerHeight
		if newHeight < 1 {
			newHeight = 1
		}
		m.viewport.Width = msg.Width
		m.viewport.Height = newHeight
		newWidth := msg.Width - 2
		if newWidth < 10 {
			newWidth = 10
		}
		m.textarea.SetWidth(newWidth)
		m.pathInput.Width = newWidth
		m.locationInput.Width = newWidth
		m.width = msg.Width
		m.termHeight = msg.Height
		m.setViewportContent()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.tabs, cmd = m.tabs.Next()
			m.syncFocus()
			return m, tea.Batch(append(cmds, cmd)...)
		case "ctrl+l":
			label := m.toggleLanguage()
			cmds = append(cmds, func() tea.Msg {
				return uitk.ShowToastMsg{Message: "Language: " + label}
			})
			return m, tea.Batch(cmds...)
		}

		switch m.tabs.ActiveID() {
		case paneChat:
			model, cmd := m.updateChatPane(msg)
			return model, tea.Batch(append(cmds, cmd)...)
		case paneAnalyze:
			model, cmd := m.updateAnalyzePane(msg)
			return model, tea.Batch(append(cmds, cmd)...)
		case paneTips:
			model, cmd := m.updateTipsPane(msg)
			return model, tea.Batch(append(cmds, cmd)...)
		}

	case chatReplyMsg:
		m.applyChatReply(msg.content)
		m.refreshViewportBottom()

	case chatFailedMsg:
		m.applyChatFailure(msg.err)
		m.refreshViewportBottom()

	case analysisDoneMsg:
		m.analyzeBusy = false
		m.analysisText = renderCropAnalysis(msg.result)

	case analysisFailedMsg:
		m.analyzeBusy = false
		m.analyzeErr = msg.err.Error()

	case tipsDoneMsg:
		m.tipsBusy = false
		m.tipsText = renderTips(msg.tips)

	case tipsFailedMsg:
		m.tipsBusy = false
		m.tipsErr = msg.err.Error()

	case serverHealthMsg:
		m.serverHealth = msg.health

	case configReloadedMsg:
		applyConfigToSession(msg.cfg, m.ctx)
		m.messages = append(m.messages, Message{Role: "client", Content: "Reloaded " + msg.path})
		m.refreshViewportBottom()

	case TUIMessageMsg:
		m.messages = append(m.messages, Message{Role: "client", Content: FormatMessage(msg.Message)})
		m.refreshViewportBottom()
	}

	return m, tea.Batch(cmds...)
}

func (m *assistModel) syncFocus() {
	if m.tabs.ActiveID() == paneChat {
		m.textarea.Focus()
	} else {
		m.textarea.Blur()
	}
}

func (m assistModel) updateChatPane(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var taCmd, vpCmd tea.Cmd

	switch msg.String() {
	case "up":
		if m.histIndex > 0 {
			m.histIndex--
			m.textarea.SetValue(m.history[m.histIndex])
			m.textarea.CursorEnd()
		}
		return m, nil
	case "down":
		if m.histIndex < len(m.history)-1 {
			m.histIndex++
			m.textarea.SetValue(m.history[m.histIndex])
			m.textarea.CursorEnd()
		} else {
			m.histIndex = len(m.history)
			m.textarea.SetValue("")
		}
		return m, nil
	case "enter":
		text := strings.TrimSpace(m.textarea.Value())
		if strings.HasPrefix(text, "/") {
			return m.runChatCommand(text)
		}
		cmd := m.submitChat(text)
		m.refreshViewportBottom()
		return m, cmd
	}

	m.textarea, taCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(taCmd, vpCmd)
}

func (m assistModel) runChatCommand(input string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(strings.ToLower(input))
	m.textarea.SetValue("")
	switch fields[0] {
	case "/help":
		m.messages = append(m.messages, Message{Role: "client", Content: "Commands:\n  /help - Show this help\n  /copy - Copy the last reply to the clipboard\n  /clear - Clear the conversation and start a new session\n  /session - Show the current and last recorded session ids\n  /language - Toggle between English and Kiswahili\n  /exit - Exit\n\nHotkeys:\n  Tab - Switch panes\n  Ctrl+L - Toggle language"})
	case "/copy":
		for i := len(m.messages) - 1; i >= 0; i-- {
			if m.messages[i].Role == "bot" {
				if err := clipboard.WriteAll(m.messages[i].Content); err != nil {
					m.messages = append(m.messages, Message{Role: "client", Content: "Could not access the clipboard."})
					break
				}
				m.refreshViewportBottom()
				return m, func() tea.Msg { return uitk.ShowToastMsg{Message: "Copied reply"} }
			}
		}
	case "/session":
		info := "Session: " + m.ctx.SessionID
		if record, err := readSessionRecord(); err == nil && record != nil {
			info += "\nLast recorded: " + record.SessionID + " at " + record.Timestamp
		}
		m.messages = append(m.messages, Message{Role: "client", Content: info})
	case "/clear":
		m.messages = []Message{{Role: "client", Content: "Conversation cleared. New session started."}}
		m.history = nil
		m.histIndex = 0
		m.ctx.SessionID = newSessionID()
	case "/language":
		label := m.toggleLanguage()
		m.messages = append(m.messages, Message{Role: "client", Content: "Language switched to " + label})
	case "/exit", "/quit":
		return m, tea.Quit
	default:
		m.messages = append(m.messages, Message{Role: "client", Content: fmt.Sprintf("Unknown command '%s'. Type '/help' for available commands.", fields[0])})
	}
	m.refreshViewportBottom()
	return m, nil
}

func (m assistModel) updateAnalyzePane(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "down":
		m.analyzeFocus = 1 - m.analyzeFocus
		if m.analyzeFocus == 0 {
			m.pathInput.Focus()
			m.locationInput.Blur()
		} else {
			m.pathInput.Blur()
			m.locationInput.Focus()
		}
		return m, nil
	case "ctrl+r":
		m.removeImage()
		return m, nil
	case "enter":
		if m.analyzeFocus == 0 && !m.imageSelected {
			if !m.selectImage(m.pathInput.Value()) {
				m.analyzeErr = "That file doesn't look like an image. Choose a photo (jpg, png, gif, webp or bmp)."
			}
			return m, nil
		}
		return m, m.submitAnalysis()
	}

	var cmd tea.Cmd
	if m.analyzeFocus == 0 {
		m.pathInput, cmd = m.pathInput.Update(msg)
	} else {
		m.locationInput, cmd = m.locationInput.Update(msg)
	}
	return m, cmd
}

func (m assistModel) updateTipsPane(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "left":
		m.cropIdx = (m.cropIdx + len(tipsCrops) - 1) % len(tipsCrops)
	case "right":
		m.cropIdx = (m.cropIdx + 1) % len(tipsCrops)
	case "up":
		m.seasonIdx = (m.seasonIdx + len(tipsSeasons) - 1) % len(tipsSeasons)
	case "down":
		m.seasonIdx = (m.seasonIdx + 1) % len(tipsSeasons)
	case "enter":
		return m, m.submitTips()
	}
	return m, nil
}

func (m assistModel) renderTranscript() string {
	var b strings.Builder
	baseStyle := lipgloss.NewStyle()
	for _, message := range m.messages {
		var line string
		switch message.Role {
		case "bot":
			labelStyle := baseStyle.Foreground(lipgloss.Color("11"))
			line = labelStyle.Render(assistantLabel) + " " + formatAnalysisText(message.Content)
		case "user":
			style := baseStyle.Foreground(lipgloss.Color("#ccc"))
			line = style.Bold(true).Render("> ") + style.Render(message.Content)
		case "client":
			line = baseStyle.Foreground(lipgloss.Color("#666666")).Render(message.Content)
		}
		b.WriteString(line + "\n")
	}

	if m.chatBusy {
		thinking := assistantLabel + " " + m.spin.View() + "Thinking..."
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Render(thinking) + gap)
	}

	return b.String()
}

// setViewportContent updates the viewport with the current transcript.
func (m *assistModel) setViewportContent() {
	m.viewport.SetContent(lipgloss.NewStyle().Width(m.viewport.Width).Render(m.renderTranscript()))
}

// refreshViewportBottom updates the viewport and scrolls to the newest entry.
func (m *assistModel) refreshViewportBottom() {
	m.setViewportContent()
	m.viewport.GotoBottom()
}

func (m assistModel) renderChatInput() string {
	var b strings.Builder
	cbStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("28"))
	b.WriteString(cbStyle.Render(m.textarea.View()))
	b.WriteString("\n")
	help := "/help for commands | Up/Down: history | Tab: switch panes | Ctrl+L: language"
	b.WriteString(lipgloss.NewStyle().Faint(true).Render(help))
	return b.String()
}

func (m assistModel) renderAnalyzePane() string {
	var b strings.Builder

	if m.imageSelected {
		b.WriteString("Selected: " + boldStyle.Render(m.imageInfo) + "\n")
		b.WriteString(faintStyle.Render("Enter: analyze | Ctrl+R: remove") + "\n\n")
	} else {
		b.WriteString("Choose a crop photo to analyze:\n")
		b.WriteString(m.pathInput.View() + "\n\n")
	}
	b.WriteString("Location: " + m.locationInput.View() + "\n")
	b.WriteString(faintStyle.Render("Up/Down: switch field") + "\n")

	if m.analyzeBusy {
		b.WriteString("\n" + m.spin.View() + "Analyzing image..." + "\n")
	}
	if m.analyzeErr != "" {
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render(m.analyzeErr) + "\n")
	}
	if m.analysisText != "" {
		b.WriteString("\n" + m.analysisText + "\n")
	}
	return b.String()
}

func (m assistModel) renderTipsPane() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Crop:   ← %s →\n", boldStyle.Render(tipsCrops[m.cropIdx])))
	b.WriteString(fmt.Sprintf("Season: ↑ %s ↓\n", boldStyle.Render(tipsSeasons[m.seasonIdx])))
	b.WriteString(faintStyle.Render("Enter: fetch tips") + "\n")

	if m.tipsBusy {
		b.WriteString("\n" + m.spin.View() + "Fetching tips..." + "\n")
	}
	if m.tipsErr != "" {
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render(m.tipsErr) + "\n")
	}
	if m.tipsText != "" {
		b.WriteString("\n" + m.tipsText + "\n")
	}
	return b.String()
}

func (m assistModel) renderInfoBar() string {
	status := "●"
	if m.serverHealth != nil && m.serverHealth.Status == "healthy" {
		status = "✅"
	} else if m.serverHealth == nil {
		status = "⚠️"
	}

	session := m.ctx.SessionID
	if len(session) > 20 {
		session = session[:20]
	}

	host := strings.TrimPrefix(strings.TrimPrefix(m.ctx.ServerURL, "https://"), "http://")

	line := fmt.Sprintf("🌾 AgriAssist | Session: %s | Lang: %s | Server: %s %s",
		session, m.ctx.LanguageLabel(), status, host)
	if m.busy() {
		line += " | " + m.spin.View() + "working"
	}

	style := lipgloss.NewStyle().
		Width(m.width).
		Background(lipgloss.Color("22")).
		Foreground(lipgloss.Color("#ffffff")).
		PaddingLeft(1).
		PaddingRight(1)
	// Truncate by display width; byte slicing could split a rune.
	if lipgloss.Width(line) > m.width-2 && m.width > 5 {
		line = ansi.Truncate(line, m.width-5, "...")
	}
	return style.Render(line)
}

func (m assistModel) View() string {
	var b strings.Builder
	b.WriteString(m.tabs.View())
	b.WriteString("\n")

	switch m.tabs.ActiveID() {
	case paneChat:
		b.WriteString(m.viewport.View())
		b.WriteString(gap)
		b.WriteString(m.renderChatInput())
	case paneAnalyze:
		b.WriteString(m.renderAnalyzePane())
	case paneTips:
		b.WriteString(m.renderTipsPane())
	}

	b.WriteString("\n")
	b.WriteString(m.renderInfoBar())

	if v := m.toast.View(); v != "" {
		b.WriteString("\n")
		b.WriteString(v)
	}

	return b.String()
}
