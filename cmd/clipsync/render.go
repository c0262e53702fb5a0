package main

import (
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/and161185/clipsync/internal/model"
)

const previewWidth = 60

type ui struct {
	out    io.Writer
	pin    lipgloss.Style
	id     lipgloss.Style
	dim    lipgloss.Style
	trash  lipgloss.Style
	tag    lipgloss.Style
	render *lipgloss.Renderer
}

// newUI styles output for w; colors are dropped when w is not a terminal.
func newUI(w io.Writer) *ui {
	r := lipgloss.NewRenderer(w)
	return &ui{
		out:    w,
		render: r,
		pin:    r.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		id:     r.NewStyle().Foreground(lipgloss.Color("39")),
		dim:    r.NewStyle().Foreground(lipgloss.Color("243")),
		trash:  r.NewStyle().Foreground(lipgloss.Color("160")).Strikethrough(true),
		tag:    r.NewStyle().Padding(0, 1),
	}
}

func (u *ui) items(items []model.ClipboardItem, colors []model.TagColor) {
	byTag := make(map[string]model.TagColor, len(colors))
	for _, c := range colors {
		byTag[c.Tag] = c
	}
	for _, it := range items {
		fmt.Fprintln(u.out, u.line(it, byTag))
	}
}

func (u *ui) line(it model.ClipboardItem, colors map[string]model.TagColor) string {
	var b strings.Builder
	if it.IsPinned {
		b.WriteString(u.pin.Render("*"))
	} else {
		b.WriteString(" ")
	}
	b.WriteString(" ")
	b.WriteString(u.id.Render(shortID(it.ID)))
	b.WriteString(" ")
	b.WriteString(u.dim.Render(it.Timestamp.Local().Format("2006-01-02 15:04")))
	b.WriteString(" ")
	b.WriteString(u.dim.Render(fmt.Sprintf("%-5s", it.Type)))
	b.WriteString(" ")

	text := preview(it)
	if it.IsTrashed {
		text = u.trash.Render(text)
	}
	b.WriteString(text)

	for _, t := range it.Tags {
		st := u.tag
		if c, ok := colors[t]; ok {
			st = st.Background(lipgloss.Color(hexColor(c))).Foreground(lipgloss.Color(contrast(c)))
		} else {
			st = st.Foreground(lipgloss.Color("245"))
		}
		b.WriteString(" ")
		b.WriteString(st.Render("#" + t))
	}
	return b.String()
}

func (u *ui) tagColors(colors []model.TagColor) {
	for _, c := range colors {
		sw := u.render.NewStyle().Background(lipgloss.Color(hexColor(c))).Render("    ")
		fmt.Fprintf(u.out, "%s %s %-20s %.3f %.3f %.3f\n", sw, hexColor(c), c.Tag, c.Red, c.Green, c.Blue)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// preview is a single line of at most previewWidth runes.
func preview(it model.ClipboardItem) string {
	text := it.Content
	if it.DisplayName != "" {
		text = it.DisplayName
	} else if it.Type.IsBinary() {
		if text == "" {
			return "(no local file)"
		}
		text = "[" + string(it.Type) + "] " + text
	}
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= previewWidth {
		return text
	}
	r := []rune(text)
	return string(r[:previewWidth-1]) + "…"
}

func hexColor(c model.TagColor) string {
	return fmt.Sprintf("#%02x%02x%02x", channel(c.Red), channel(c.Green), channel(c.Blue))
}

func channel(v float64) int { return int(math.Round(v * 255)) }

// contrast picks black or white text for a background.
func contrast(c model.TagColor) string {
	if 0.299*c.Red+0.587*c.Green+0.114*c.Blue > 0.6 {
		return "#000000"
	}
	return "#ffffff"
}
