package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hamed0406/masterstatus/internal/domain"
)

type Format string

const (
	FormatHTML Format = "html"
	FormatJSON Format = "json"
	FormatText Format = "text"
	FormatYAML Format = "yaml"
	FormatProm Format = "prom"
)

// Formats lists every supported format with the file it is written to.
var Formats = map[Format]string{
	FormatHTML: "index.html",
	FormatJSON: "status.json",
	FormatText: "status.txt",
	FormatYAML: "status.yaml",
	FormatProm: "status.prom",
}

func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := Formats[f]; !ok {
		return "", fmt.Errorf("unknown report format %q", s)
	}
	return f, nil
}

// ParseFormats parses a configured list of format names, dropping duplicates.
func ParseFormats(names []string) ([]Format, error) {
	out := make([]Format, 0, len(names))
	seen := make(map[Format]bool, len(names))
	for _, n := range names {
		f, err := ParseFormat(n)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

type Options struct {
	Title   string
	TCPPort int // shown in the TCP column header when set
}

const timeLayout = "2006-01-02 15:04:05 MST"

// Render writes snap in the given format. The snapshot is only read.
func Render(w io.Writer, f Format, snap domain.Snapshot, opts Options) error {
	switch f {
	case FormatHTML:
		return renderHTML(w, snap, opts)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(document(snap, opts))
	case FormatText:
		return renderText(w, snap, opts)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(document(snap, opts)); err != nil {
			return err
		}
		return enc.Close()
	case FormatProm:
		return renderProm(w, snap)
	default:
		return fmt.Errorf("unknown report format %q", f)
	}
}

// doc is the serialized shape shared by the JSON and YAML reports.
type doc struct {
	Title       string      `json:"title" yaml:"title"`
	GeneratedAt time.Time   `json:"generated_at" yaml:"generated_at"`
	Protocols   []string    `json:"protocols" yaml:"protocols"`
	Summary     docSummary  `json:"summary" yaml:"summary"`
	Servers     []docServer `json:"servers" yaml:"servers"`
}

type docSummary struct {
	Servers int            `json:"servers" yaml:"servers"`
	AllUp   int            `json:"all_up" yaml:"all_up"`
	AllDown int            `json:"all_down" yaml:"all_down"`
	Up      map[string]int `json:"up_by_protocol" yaml:"up_by_protocol"`
}

type docServer struct {
	ID      string          `json:"id" yaml:"id"`
	Country string          `json:"country" yaml:"country"`
	Address string          `json:"address" yaml:"address"`
	Up      map[string]bool `json:"up" yaml:"up"`
}

func document(snap domain.Snapshot, opts Options) doc {
	sum := snap.Summary()
	d := doc{
		Title:       opts.Title,
		GeneratedAt: snap.GeneratedAt.UTC(),
		Protocols:   make([]string, 0, len(snap.Protocols)),
		Summary: docSummary{
			Servers: sum.Servers,
			AllUp:   sum.AllUp,
			AllDown: sum.AllDown,
			Up:      make(map[string]int, len(sum.UpBy)),
		},
		Servers: make([]docServer, 0, len(snap.Statuses)),
	}
	for _, p := range snap.Protocols {
		d.Protocols = append(d.Protocols, string(p))
		d.Summary.Up[string(p)] = sum.UpBy[p]
	}
	for _, st := range snap.Statuses {
		s := docServer{
			ID:      st.Server.ID,
			Country: st.Server.Country,
			Address: st.Server.Address,
			Up:      make(map[string]bool, len(snap.Protocols)),
		}
		for _, p := range snap.Protocols {
			s.Up[string(p)] = st.Up(p)
		}
		d.Servers = append(d.Servers, s)
	}
	return d
}

func header(p domain.Protocol, opts Options) string {
	if p == domain.ProtocolTCP && opts.TCPPort > 0 {
		return fmt.Sprintf("%s %d", p.Label(), opts.TCPPort)
	}
	return p.Label()
}

func renderText(w io.Writer, snap domain.Snapshot, opts Options) error {
	if opts.Title != "" {
		if _, err := fmt.Fprintln(w, opts.Title); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "Updated: %s\n\n", snap.GeneratedAt.UTC().Format(timeLayout)); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	cols := []string{"ID", "COUNTRY", "ADDRESS"}
	for _, p := range snap.Protocols {
		cols = append(cols, header(p, opts))
	}
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
	for _, st := range snap.Statuses {
		row := []string{st.Server.ID, st.Server.Country, st.Server.Address}
		for _, p := range snap.Protocols {
			row = append(row, upDown(st.Up(p)))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	sum := snap.Summary()
	_, err := fmt.Fprintf(w, "\n%d servers, %d all up, %d all down\n", sum.Servers, sum.AllUp, sum.AllDown)
	return err
}

func upDown(up bool) string {
	if up {
		return "UP"
	}
	return "DOWN"
}
