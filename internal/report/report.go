// Package report renders scoring results, history and the catalog as
// Markdown, optionally styled for the terminal.
package report

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	md "github.com/nao1215/markdown"

	"PortfolioLens/internal/catalog"
	"PortfolioLens/internal/model"
	"PortfolioLens/internal/recorder"
)

// Options controls ResultMarkdown.
type Options struct {
	Top     int  // rank at most Top philosophies, 0 for all
	Details bool // list matched and missing signals per philosophy
}

// ResultMarkdown renders a ranked scoring result.
func ResultMarkdown(res *model.ComplianceResult, opts Options) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("Philosophy Match")
	if res.BestMatch != nil {
		doc.PlainText(fmt.Sprintf("Best match: %s (%d/100)", md.Bold(res.BestMatch.DisplayName), res.BestMatch.Score))
	} else {
		doc.PlainText("No philosophy matched this portfolio.")
	}

	ranked := res.Philosophies
	if opts.Top > 0 && opts.Top < len(ranked) {
		ranked = ranked[:opts.Top]
	}

	table := md.TableSet{
		Alignment: []md.TableAlignment{md.AlignRight, md.AlignLeft, md.AlignRight, md.AlignLeft},
		Header:    []string{"#", "Philosophy", "Score", "Status"},
		Rows:      [][]string{},
	}
	for i, m := range ranked {
		table.Rows = append(table.Rows, []string{
			strconv.Itoa(i + 1),
			m.DisplayName,
			strconv.Itoa(m.Score),
			status(m),
		})
	}
	doc.Table(table)

	if opts.Details {
		for _, m := range ranked {
			doc.H2(fmt.Sprintf("%s (%d)", m.DisplayName, m.Score))
			if m.IsExcluded {
				doc.PlainText("Excluded by " + code(m.ExclusionReason))
				continue
			}
			items := make([]string, 0, len(m.MatchedSignals)+len(m.MissingSignals))
			for _, s := range m.MatchedSignals {
				items = append(items, fmt.Sprintf("[x] %s +%d %s", s.Name, s.Points, code(s.Rule)))
			}
			for _, s := range m.MissingSignals {
				items = append(items, fmt.Sprintf("[ ] %s %d %s", s.Name, s.Points, code(s.Rule)))
			}
			if len(items) == 0 {
				doc.PlainText("No signals defined.")
				continue
			}
			doc.BulletList(items...)
		}
	}
	return doc.String()
}

func status(m model.PhilosophyMatch) string {
	switch {
	case m.IsExcluded:
		return "excluded"
	case m.Score >= 70:
		return "strong"
	case m.Score >= 40:
		return "partial"
	case m.Score > 0:
		return "weak"
	default:
		return "none"
	}
}

func code(s string) string {
	return "`" + s + "`"
}

// HistoryMarkdown renders recorded runs, newest first.
func HistoryMarkdown(runs []recorder.Run) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("Scoring History")
	if len(runs) == 0 {
		doc.PlainText("No runs recorded.")
		return doc.String()
	}

	table := md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignLeft, md.AlignLeft, md.AlignLeft, md.AlignRight},
		Header:    []string{"Time", "Run", "Catalog", "Best Match", "Score"},
		Rows:      [][]string{},
	}
	for _, r := range runs {
		best := r.BestMatch
		if best == "" {
			best = "-"
		}
		table.Rows = append(table.Rows, []string{
			r.Timestamp.Format("2006-01-02 15:04:05"),
			shortID(r.ID),
			r.CatalogVersion,
			best,
			strconv.Itoa(r.BestScore),
		})
	}
	doc.Table(table)
	return doc.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// CatalogMarkdown lists the catalog's philosophies with their signals and
// exclusions, followed by any rules that do not parse.
func CatalogMarkdown(cat *model.Catalog, issues []catalog.Issue) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	title := "Philosophy Catalog"
	if cat.Version != "" {
		title += " " + cat.Version
	}
	doc.H1(title)

	table := md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignLeft, md.AlignRight, md.AlignRight, md.AlignRight},
		Header:    []string{"ID", "Name", "Signals", "Max Points", "Exclusions"},
		Rows:      [][]string{},
	}
	for _, p := range cat.Philosophies {
		table.Rows = append(table.Rows, []string{
			p.ID,
			p.DisplayName,
			strconv.Itoa(len(p.Detection.Signals)),
			strconv.Itoa(p.MaxPoints()),
			strconv.Itoa(len(p.Exclusions)),
		})
	}
	doc.Table(table)

	if len(issues) > 0 {
		doc.H2("Broken Rules")
		items := make([]string, len(issues))
		for i, is := range issues {
			items[i] = fmt.Sprintf("%s %s %s: %s (%v)", is.Philosophy, is.Kind, is.Name, code(is.Rule), is.Err)
		}
		doc.BulletList(items...)
	}
	return doc.String()
}

// Write prints markdown to w, styled for a terminal when pretty is set.
func Write(w io.Writer, markdown string, pretty bool) error {
	if !pretty {
		_, err := io.WriteString(w, markdown)
		return err
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	_, err = io.WriteString(w, strings.TrimLeft(out, "\n"))
	return err
}
