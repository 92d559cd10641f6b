package report

import (
	"html/template"
	"io"

	"github.com/hamed0406/masterstatus/internal/domain"
)

var page = template.Must(template.New("index").Funcs(template.FuncMap{
	"dot": func(up bool) string {
		if up {
			return "🟢"
		}
		return "🔴"
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #999; padding: 4px 8px; }
td.status { text-align: center; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>Updated: {{.Updated}}</p>
<p>{{.Summary.Servers}} servers, {{.Summary.AllUp}} all up, {{.Summary.AllDown}} all down</p>
<table>
<tr><th>ID</th><th>Country</th><th>Address</th>{{range .Headers}}<th>{{.}}</th>{{end}}</tr>
{{- range .Rows}}
<tr><td>{{.ID}}</td><td>{{.Country}}</td><td>{{.Address}}</td>{{range .Up}}<td class="status">{{dot .}}</td>{{end}}</tr>
{{- end}}
</table>
</body>
</html>
`))

type htmlRow struct {
	ID, Country, Address string
	Up                   []bool
}

func renderHTML(w io.Writer, snap domain.Snapshot, opts Options) error {
	title := opts.Title
	if title == "" {
		title = "Server Status"
	}
	data := struct {
		Title   string
		Updated string
		Summary domain.Summary
		Headers []string
		Rows    []htmlRow
	}{
		Title:   title,
		Updated: snap.GeneratedAt.UTC().Format(timeLayout),
		Summary: snap.Summary(),
	}
	for _, p := range snap.Protocols {
		data.Headers = append(data.Headers, header(p, opts))
	}
	for _, st := range snap.Statuses {
		row := htmlRow{ID: st.Server.ID, Country: st.Server.Country, Address: st.Server.Address}
		for _, p := range snap.Protocols {
			row.Up = append(row.Up, st.Up(p))
		}
		data.Rows = append(data.Rows, row)
	}
	return page.Execute(w, data)
}
