package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/samber/lo"
	"github.com/spf13/pflag"
	"go.yaml.in/yaml/v3"
	"golang.org/x/term"

	"thoreinstein.com/repodash/pkg/discovery"
)

// outputFormat is a pflag.Value selecting how records are printed.
type outputFormat string

const (
	outputTable outputFormat = "table"
	outputJSON  outputFormat = "json"
	outputYAML  outputFormat = "yaml"
	outputTOML  outputFormat = "toml"
)

var outputFormats = []outputFormat{outputTable, outputJSON, outputYAML, outputTOML}

var _ pflag.Value = (*outputFormat)(nil)

func (o *outputFormat) String() string {
	if *o == "" {
		return string(outputTable)
	}
	return string(*o)
}

func (o *outputFormat) Set(v string) error {
	f := outputFormat(strings.ToLower(v))
	if !lo.Contains(outputFormats, f) {
		return errors.Newf("must be one of %s", strings.Join(lo.Map(outputFormats, func(f outputFormat, _ int) string {
			return string(f)
		}), ", "))
	}
	*o = f
	return nil
}

func (o *outputFormat) Type() string {
	return "format"
}

// recordView is the exported shape of a record.
type recordView struct {
	Path         string     `json:"path" yaml:"path" toml:"path"`
	Name         string     `json:"name" yaml:"name" toml:"name"`
	Status       string     `json:"status" yaml:"status" toml:"status"`
	Changes      int        `json:"changes" yaml:"changes" toml:"changes"`
	Ahead        int        `json:"ahead" yaml:"ahead" toml:"ahead"`
	Error        string     `json:"error,omitempty" yaml:"error,omitempty" toml:"error,omitempty"`
	LastProbedAt *time.Time `json:"last_probed_at,omitempty" yaml:"last_probed_at,omitempty" toml:"last_probed_at,omitempty"`
}

func toView(rec discovery.Record) recordView {
	v := recordView{
		Path:    rec.Path,
		Name:    rec.DisplayName,
		Status:  rec.Status().String(),
		Changes: rec.Changes,
		Ahead:   rec.Ahead,
		Error:   rec.ProbeError,
	}
	if !rec.LastProbedAt.IsZero() {
		v.LastProbedAt = lo.ToPtr(rec.LastProbedAt)
	}
	return v
}

// renderRecords writes records to w in the requested format.
func renderRecords(w io.Writer, records []discovery.Record, format outputFormat) error {
	views := lo.Map(records, func(rec discovery.Record, _ int) recordView {
		return toView(rec)
	})

	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(views); err != nil {
			return errors.Wrap(err, "failed to encode yaml")
		}
		return enc.Close()
	case outputTOML:
		// TOML has no top-level arrays.
		doc := struct {
			Repositories []recordView `toml:"repositories"`
		}{views}
		return toml.NewEncoder(w).Encode(doc)
	default:
		return renderTable(w, records)
	}
}

var statusColors = map[discovery.Status]lipgloss.Color{
	discovery.StatusClean:                   lipgloss.Color("2"),
	discovery.StatusLocalChanges:            lipgloss.Color("3"),
	discovery.StatusUnpushed:                lipgloss.Color("4"),
	discovery.StatusLocalChangesAndUnpushed: lipgloss.Color("1"),
	discovery.StatusUnknown:                 lipgloss.Color("8"),
}

func renderTable(w io.Writer, records []discovery.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No repositories found.")
		return err
	}

	rows := lo.Map(records, func(rec discovery.Record, _ int) []string {
		return []string{rec.DisplayName, rec.Status().Label(), strconv.Itoa(rec.Changes), strconv.Itoa(rec.Ahead), rec.Path}
	})

	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("NAME", "STATUS", "CHANGES", "AHEAD", "PATH").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			if col == 1 {
				return cell.Foreground(statusColors[records[row].Status()])
			}
			return cell
		})

	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}

	counts := discovery.CountByStatus(records)
	parts := lo.FilterMap(discovery.Statuses, func(s discovery.Status, _ int) (string, bool) {
		return fmt.Sprintf("%d %s", counts[s], s.Label()), counts[s] > 0
	})
	_, err := fmt.Fprintf(w, "%d repositories: %s\n", len(records), strings.Join(parts, ", "))
	return err
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// progressPrinter redraws a single progress line on a terminal.
type progressPrinter struct {
	w       io.Writer
	enabled bool
	found   int
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w, enabled: isTerminal(w)}
}

func (p *progressPrinter) listener() discovery.Listener {
	return discovery.ListenerFuncs{
		OnRepositoryFound: func(string) {
			p.found++
		},
		OnProgress: func(percent int) {
			if p.enabled {
				fmt.Fprintf(p.w, "\rScanning... %3d%%  %d repositories", percent, p.found)
			}
		},
	}
}

// done clears the progress line.
func (p *progressPrinter) done() {
	if p.enabled {
		fmt.Fprint(p.w, "\r\033[K")
	}
}
