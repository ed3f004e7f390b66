package cmd

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"unicode/utf8"

	"agriassist-cli/cmd/config"
)

func newTestModel(t *testing.T) assistModel {
	t.Helper()
	ctx := testContext(&mockHTTPClient{resp: jsonResponse(200, `{"success": true, "response": "ok"}`)})
	return newAssistModel(ctx)
}

func botMessages(m assistModel) []Message {
	var bots []Message
	for _, msg := range m.messages {
		if msg.Role == "bot" {
			bots = append(bots, msg)
		}
	}
	return bots
}

func TestSubmitChatBlankInputIsNoop(t *testing.T) {
	m := newTestModel(t)
	before := len(m.messages)

	if cmd := m.submitChat("   "); cmd != nil {
		t.Fatalf("expected no command for blank input")
	}
	if len(m.messages) != before {
		t.Fatalf("expected transcript unchanged, got %d messages", len(m.messages))
	}
	if m.chatBusy {
		t.Fatalf("expected chat to stay idle")
	}
}

func TestSubmitChatAppendsUserEntryImmediately(t *testing.T) {
	m := newTestModel(t)

	cmd := m.submitChat("How do I treat leaf blight?")
	if cmd == nil {
		t.Fatalf("expected a command to be returned")
	}

	last := m.messages[len(m.messages)-1]
	if last.Role != "user" || last.Content != "How do I treat leaf blight?" {
		t.Fatalf("expected user entry appended, got %+v", last)
	}
	if !m.chatBusy {
		t.Fatalf("expected chat to be busy after submit")
	}
	if m.textarea.Value() != "" {
		t.Fatalf("expected input cleared after submit")
	}
	if len(m.history) != 1 || m.history[0] != "How do I treat leaf blight?" {
		t.Fatalf("expected entry recorded in history, got %v", m.history)
	}
}

func TestSubmitChatRejectsOverlappingRequests(t *testing.T) {
	m := newTestModel(t)

	if cmd := m.submitChat("first"); cmd == nil {
		t.Fatalf("expected first submit to start a request")
	}
	before := len(m.messages)

	if cmd := m.submitChat("second"); cmd != nil {
		t.Fatalf("expected overlapping submit to be rejected")
	}
	if len(m.messages) != before {
		t.Fatalf("expected transcript unchanged on rejected submit")
	}
}

func TestChatReplyClearsBusyAndAppendsBotEntry(t *testing.T) {
	m := newTestModel(t)
	m.submitChat("hello")

	m.applyChatReply("Plant after the first rains.")
	if m.chatBusy {
		t.Fatalf("expected busy cleared after reply")
	}
	bots := botMessages(m)
	if len(bots) != 1 || bots[0].Content != "Plant after the first rains." {
		t.Fatalf("expected one bot entry with the reply, got %+v", bots)
	}
}

func TestChatFailureAppendsSingleFallbackEntry(t *testing.T) {
	m := newTestModel(t)
	m.submitChat("hello")

	m.applyChatFailure(errors.New("connection refused"))
	if m.chatBusy {
		t.Fatalf("expected busy cleared after failure")
	}

	bots := botMessages(m)
	if len(bots) != 1 {
		t.Fatalf("expected exactly one fallback entry, got %d", len(bots))
	}
	if bots[0].Content != chatFallbackMessage {
		t.Fatalf("expected fixed fallback message, got %q", bots[0].Content)
	}
	// Raw error details must never surface in the transcript.
	for _, msg := range m.messages {
		if strings.Contains(msg.Content, "connection refused") {
			t.Fatalf("expected raw error kept out of the transcript, got %q", msg.Content)
		}
	}
}

func TestBusyClearedOnEveryCompletionPath(t *testing.T) {
	m := newTestModel(t)
	m.chatBusy = true
	m.analyzeBusy = true
	m.tipsBusy = true
	if !m.busy() {
		t.Fatalf("expected model to report busy")
	}

	model, _ := m.Update(chatFailedMsg{err: errors.New("boom")})
	m = model.(assistModel)
	model, _ = m.Update(analysisFailedMsg{err: errors.New("boom")})
	m = model.(assistModel)
	model, _ = m.Update(tipsDoneMsg{tips: &TipsPayload{Text: "ok"}})
	m = model.(assistModel)

	if m.busy() {
		t.Fatalf("expected all busy flags cleared, got chat=%v analyze=%v tips=%v",
			m.chatBusy, m.analyzeBusy, m.tipsBusy)
	}
}

func TestAnalysisResultsRoutedToAnalyzePane(t *testing.T) {
	m := newTestModel(t)
	m.analyzeBusy = true

	model, _ := m.Update(analysisDoneMsg{result: &CropAnalysis{Text: "Healthy crop."}})
	m = model.(assistModel)

	if m.analyzeBusy {
		t.Fatalf("expected analyze busy cleared")
	}
	if !strings.Contains(m.analysisText, "Healthy crop.") {
		t.Fatalf("expected analysis text set, got %q", m.analysisText)
	}
	if m.analyzeErr != "" {
		t.Fatalf("expected no analyze error, got %q", m.analyzeErr)
	}
}

func TestAnalysisFailureShowsErrorInPane(t *testing.T) {
	m := newTestModel(t)
	m.analyzeBusy = true

	model, _ := m.Update(analysisFailedMsg{err: errors.New("server returned error 500")})
	m = model.(assistModel)

	if m.analyzeErr != "server returned error 500" {
		t.Fatalf("expected analyze error surfaced, got %q", m.analyzeErr)
	}
}

func TestSelectImageStagesValidImage(t *testing.T) {
	m := newTestModel(t)
	path := writePNG(t, t.TempDir(), "leaf.png")

	if !m.selectImage(path) {
		t.Fatalf("expected image to be accepted")
	}
	if !m.imageSelected || m.imagePath != path {
		t.Fatalf("expected image staged, got selected=%v path=%q", m.imageSelected, m.imagePath)
	}
	if !strings.Contains(m.imageInfo, "leaf.png") || !strings.Contains(m.imageInfo, "image/png") {
		t.Fatalf("expected name and type in image info, got %q", m.imageInfo)
	}
	if !m.canAnalyze() {
		t.Fatalf("expected analysis to be allowed with a staged image")
	}
}

func TestSelectImageRejectsNonImageWithoutStateChange(t *testing.T) {
	m := newTestModel(t)
	staged := writePNG(t, t.TempDir(), "leaf.png")
	m.selectImage(staged)

	if m.selectImage("notes.txt") {
		t.Fatalf("expected non-image to be rejected")
	}
	if m.imagePath != staged {
		t.Fatalf("expected previous selection kept, got %q", m.imagePath)
	}
}

func TestRemoveImageResetsAnalyzePane(t *testing.T) {
	m := newTestModel(t)
	m.selectImage(writePNG(t, t.TempDir(), "leaf.png"))
	m.analysisText = "old result"

	m.removeImage()
	if m.imageSelected || m.imagePath != "" || m.imageInfo != "" {
		t.Fatalf("expected analyze pane cleared")
	}
	if m.analysisText != "" {
		t.Fatalf("expected stale analysis cleared")
	}
	if m.canAnalyze() {
		t.Fatalf("expected analysis disabled with no image")
	}
}

func TestSubmitAnalysisRequiresStagedImage(t *testing.T) {
	m := newTestModel(t)
	if cmd := m.submitAnalysis(); cmd != nil {
		t.Fatalf("expected no command without a staged image")
	}

	m.selectImage(writePNG(t, t.TempDir(), "leaf.png"))
	if cmd := m.submitAnalysis(); cmd == nil {
		t.Fatalf("expected a command with a staged image")
	}
	if !m.analyzeBusy {
		t.Fatalf("expected analyze busy after submit")
	}
	if cmd := m.submitAnalysis(); cmd != nil {
		t.Fatalf("expected overlapping analysis to be rejected")
	}
}

func TestSubmitTipsGuardsOverlap(t *testing.T) {
	m := newTestModel(t)

	if cmd := m.submitTips(); cmd == nil {
		t.Fatalf("expected a command from first submit")
	}
	if !m.tipsBusy {
		t.Fatalf("expected tips busy after submit")
	}
	if cmd := m.submitTips(); cmd != nil {
		t.Fatalf("expected overlapping tips request to be rejected")
	}
}

func TestToggleLanguageFlipsLabel(t *testing.T) {
	m := newTestModel(t)

	if label := m.toggleLanguage(); label != "SW" {
		t.Fatalf("expected SW after first toggle, got %q", label)
	}
	if m.ctx.Language != "sw" {
		t.Fatalf("expected session language sw, got %q", m.ctx.Language)
	}
	if label := m.toggleLanguage(); label != "EN" {
		t.Fatalf("expected EN after second toggle, got %q", label)
	}
}

func TestClearCommandStartsNewSession(t *testing.T) {
	m := newTestModel(t)
	oldID := m.ctx.SessionID
	m.submitChat("hello")
	m.applyChatReply("hi")

	model, _ := m.runChatCommand("/clear")
	m = model.(assistModel)

	if len(m.messages) != 1 || m.messages[0].Role != "client" {
		t.Fatalf("expected transcript reset to a single notice, got %+v", m.messages)
	}
	if m.ctx.SessionID == oldID {
		t.Fatalf("expected a fresh session id after /clear")
	}
	if !strings.HasPrefix(m.ctx.SessionID, "session_") {
		t.Fatalf("expected well-formed session id, got %q", m.ctx.SessionID)
	}
	if len(m.history) != 0 {
		t.Fatalf("expected history cleared, got %v", m.history)
	}
}

func TestUnknownCommandLeavesNotice(t *testing.T) {
	m := newTestModel(t)

	model, _ := m.runChatCommand("/bogus")
	m = model.(assistModel)

	last := m.messages[len(m.messages)-1]
	if last.Role != "client" || !strings.Contains(last.Content, "/bogus") {
		t.Fatalf("expected unknown command notice, got %+v", last)
	}
}

func TestRenderTranscriptShowsThinkingWhileBusy(t *testing.T) {
	m := newTestModel(t)
	m.submitChat("hello")

	out := m.renderTranscript()
	if !strings.Contains(out, "Thinking...") {
		t.Fatalf("expected thinking indicator while a reply is pending")
	}

	m.applyChatReply("done")
	if out := m.renderTranscript(); strings.Contains(out, "Thinking...") {
		t.Fatalf("expected thinking indicator removed after reply")
	}
}

func TestSubmitChatSnapshotsSessionState(t *testing.T) {
	useTempDataDir(t)

	client := &mockHTTPClient{resp: jsonResponse(200, `{"success": true, "response": "ok"}`)}
	m := newAssistModel(testContext(client))

	cmd := m.submitChat("hello")
	if cmd == nil {
		t.Fatalf("expected a command")
	}

	// A config reload after submit must not affect the request in flight.
	m.ctx.Language = "sw"
	m.ctx.ServerURL = "http://elsewhere:9999"
	cmd()

	body, _ := io.ReadAll(client.lastReq.Body)
	var payload ChatRequest
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("failed to decode request body: %v", err)
	}
	if payload.Language != "en" {
		t.Fatalf("expected language captured at submit time, got %q", payload.Language)
	}
	if got := client.lastReq.URL.Host; got != "localhost:5000" {
		t.Fatalf("expected server captured at submit time, got %q", got)
	}
}

func TestConfigReloadAppliedOnUpdate(t *testing.T) {
	m := newTestModel(t)

	model, _ := m.Update(configReloadedMsg{
		cfg:  &config.AgriAssistConfig{ServerURL: "http://farm:5000", Language: "sw"},
		path: "agriassist.yaml",
	})
	m = model.(assistModel)

	if m.ctx.ServerURL != "http://farm:5000" || m.ctx.Language != "sw" {
		t.Fatalf("expected reloaded config applied to the session, got %+v", m.ctx)
	}
	last := m.messages[len(m.messages)-1]
	if last.Role != "client" || !strings.Contains(last.Content, "agriassist.yaml") {
		t.Fatalf("expected reload notice in transcript, got %+v", last)
	}
}

func TestCheckHealthCmdUsesInjectedProbeClient(t *testing.T) {
	sessionClient := &mockHTTPClient{err: errors.New("should not be used")}
	probeClient := &mockHTTPClient{resp: jsonResponse(200, `{"status": "healthy", "service": "AgriAssist AI"}`)}
	ctx := testContext(sessionClient)

	msg := checkHealthCmd(ctx, probeClient)()
	health, ok := msg.(serverHealthMsg)
	if !ok {
		t.Fatalf("expected serverHealthMsg, got %T", msg)
	}
	if health.health == nil || health.health.Status != "healthy" {
		t.Fatalf("expected healthy status, got %+v", health.health)
	}
	if probeClient.calls != 1 {
		t.Fatalf("expected probe client used, got %d calls", probeClient.calls)
	}
	if sessionClient.calls != 0 {
		t.Fatalf("expected session client untouched, got %d calls", sessionClient.calls)
	}
	if got := probeClient.lastReq.URL.Path; got != "/api/health" {
		t.Fatalf("expected health endpoint, got %q", got)
	}
}

func TestSessionCommandShowsCurrentAndRecordedIDs(t *testing.T) {
	useTempDataDir(t)
	if err := writeSessionRecord("session_999_zzzz"); err != nil {
		t.Fatalf("failed to write record: %v", err)
	}

	m := newTestModel(t)
	model, _ := m.runChatCommand("/session")
	m = model.(assistModel)

	last := m.messages[len(m.messages)-1]
	if last.Role != "client" {
		t.Fatalf("expected client notice, got %+v", last)
	}
	if !strings.Contains(last.Content, m.ctx.SessionID) {
		t.Fatalf("expected current session id in notice, got %q", last.Content)
	}
	if !strings.Contains(last.Content, "session_999_zzzz") {
		t.Fatalf("expected last recorded session id in notice, got %q", last.Content)
	}
}

func TestInfoBarTruncationKeepsValidUTF8(t *testing.T) {
	m := newTestModel(t)

	for width := 6; width <= 40; width++ {
		m.width = width
		bar := m.renderInfoBar()
		if !utf8.ValidString(bar) {
			t.Fatalf("expected valid UTF-8 at width %d, got %q", width, bar)
		}
		if strings.ContainsRune(bar, utf8.RuneError) {
			t.Fatalf("expected no replacement characters at width %d, got %q", width, bar)
		}
	}
}

func TestInfoBarReflectsSessionState(t *testing.T) {
	m := newTestModel(t)
	m.width = 120

	bar := m.renderInfoBar()
	if !strings.Contains(bar, "Lang: EN") {
		t.Fatalf("expected language label in info bar, got %q", bar)
	}
	if !strings.Contains(bar, "localhost:5000") {
		t.Fatalf("expected server host in info bar, got %q", bar)
	}

	m.toggleLanguage()
	if bar := m.renderInfoBar(); !strings.Contains(bar, "Lang: SW") {
		t.Fatalf("expected toggled language label, got %q", bar)
	}
}
