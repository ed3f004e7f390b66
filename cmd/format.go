package cmd

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	boldStyle    = lipgloss.NewStyle().Bold(true)
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
	".bmp":  {},
}

// detectImageType reports whether the file at path looks like an image and,
// when it does, the detected MIME type. A known image extension is trusted;
// otherwise the first bytes are sniffed.
func detectImageType(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := imageExtensions[ext]; ok {
		mime := "image/" + strings.TrimPrefix(ext, ".")
		if ext == ".jpg" {
			mime = "image/jpeg"
		}
		return mime, true
	}

	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := f.Read(head)
	if err != nil && n == 0 {
		return "", false
	}
	mime := http.DetectContentType(head[:n])
	if strings.HasPrefix(mime, "image/") {
		return mime, true
	}
	return "", false
}

// formatAnalysisText converts the minimal markdown the server emits into
// terminal styling: **bold** spans become bold text, paragraph breaks are
// preserved as blank lines.
func formatAnalysisText(text string) string {
	var b strings.Builder
	rest := text
	for {
		start := strings.Index(rest, "**")
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start+2:], "**")
		if end < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:start])
		b.WriteString(boldStyle.Render(rest[start+2 : start+2+end]))
		rest = rest[start+2+end+2:]
	}
	return strings.TrimSpace(b.String())
}

// renderCropAnalysis formats an analysis result, appending the weather
// context when the server included one.
func renderCropAnalysis(a *CropAnalysis) string {
	var b strings.Builder
	b.WriteString(formatAnalysisText(a.Text))
	if a.Weather != nil {
		b.WriteString("\n\n")
		b.WriteString(headingStyle.Render("WEATHER CONTEXT"))
		b.WriteString(fmt.Sprintf("\n%.0f°C, %.0f%% humidity, %s",
			a.Weather.Temperature, a.Weather.Humidity, a.Weather.Description))
		if a.Weather.WindSpeed > 0 {
			b.WriteString(fmt.Sprintf(", wind %.1f m/s", a.Weather.WindSpeed))
		}
		if a.Weather.Note != "" {
			b.WriteString("\n" + faintStyle.Render(a.Weather.Note))
		}
	}
	return b.String()
}

// renderTips formats a tips payload. A plain-text payload is shown verbatim.
// A structured payload becomes one section per key: underscores replaced
// with spaces and upper-cased, values joined by line breaks. Sections are
// sorted so output is deterministic.
func renderTips(t *TipsPayload) string {
	if t.Sections == nil {
		return strings.TrimSpace(t.Text)
	}

	keys := make([]string, 0, len(t.Sections))
	for k := range t.Sections {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(headingStyle.Render(sectionTitle(key)))
		b.WriteString("\n")
		b.WriteString(strings.Join(t.Sections[key], "\n"))
	}
	return b.String()
}

func sectionTitle(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, "_", " "))
}

// renderMarketPrices formats the price table, one crop per line, sorted.
func renderMarketPrices(p *MarketPricesResponse) string {
	crops := make([]string, 0, len(p.Prices))
	for crop := range p.Prices {
		crops = append(crops, crop)
	}
	sort.Strings(crops)

	var b strings.Builder
	for _, crop := range crops {
		quote := p.Prices[crop]
		b.WriteString(fmt.Sprintf("%-12s %8.0f %-14s %s\n",
			crop, quote.Price, quote.Unit, trendIcon(quote.Trend)))
	}
	if p.LastUpdated != "" {
		b.WriteString(faintStyle.Render("last updated: " + p.LastUpdated))
	}
	return strings.TrimRight(b.String(), "\n")
}

func trendIcon(trend string) string {
	switch strings.ToLower(trend) {
	case "rising":
		return "↑ rising"
	case "falling":
		return "↓ falling"
	default:
		return "→ stable"
	}
}

// formatBytes converts bytes to a human-readable string with binary units.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	units := []string{"KB", "MB", "GB", "TB", "PB"}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit && exp < len(units)-1; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), units[exp])
}
