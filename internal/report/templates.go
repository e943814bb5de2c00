package report

import (
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/FriendsOfREDAXO/mail-tools/internal/maillog"
)

// reportData is the payload both templates render.
type reportData struct {
	GeneratedAt time.Time
	Stats       maillog.Statistics
	Failures    []failureRow
}

type failureRow struct {
	Timestamp time.Time
	Recipient string
	Subject   string
	Error     string
}

var templateFuncs = map[string]any{
	"fmtTime": func(t time.Time) string {
		return t.Format("2006-01-02 15:04:05")
	},
	"truncate": func(s string, n int) string {
		if len(s) <= n {
			return s
		}
		return strings.TrimSpace(s[:n]) + "..."
	},
}

var textTemplate = texttemplate.Must(
	texttemplate.New("report").Funcs(templateFuncs).Parse(`Mail delivery failure report
Generated: {{fmtTime .GeneratedAt}}

Summary
-------
New failures:      {{len .Failures}}
Failures today:    {{.Stats.Today}}
Failures (7 days): {{.Stats.Week}}
Failures (30 days): {{.Stats.Month}}
{{if .Stats.TopDomains}}
Most affected domains
---------------------
{{range .Stats.TopDomains}}  {{.Domain}}: {{.Count}}
{{end}}{{end}}
Failures
--------
{{range .Failures}}{{fmtTime .Timestamp}}  {{.Recipient}}
  Subject: {{.Subject}}
  Error:   {{truncate .Error 200}}

{{end}}`))

var htmlTemplate = htmltemplate.Must(
	htmltemplate.New("report").Funcs(templateFuncs).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; color: #222;">
<h2>Mail delivery failure report</h2>
<p>Generated: {{fmtTime .GeneratedAt}}</p>

<h3>Summary</h3>
<table cellpadding="4" cellspacing="0" border="0">
<tr><td>New failures</td><td><strong>{{len .Failures}}</strong></td></tr>
<tr><td>Failures today</td><td>{{.Stats.Today}}</td></tr>
<tr><td>Failures (7 days)</td><td>{{.Stats.Week}}</td></tr>
<tr><td>Failures (30 days)</td><td>{{.Stats.Month}}</td></tr>
</table>
{{if .Stats.TopDomains}}
<h3>Most affected domains</h3>
<table cellpadding="4" cellspacing="0" border="1" style="border-collapse: collapse;">
<tr><th align="left">Domain</th><th align="right">Failures</th></tr>
{{range .Stats.TopDomains}}<tr><td>{{.Domain}}</td><td align="right">{{.Count}}</td></tr>
{{end}}</table>
{{end}}
<h3>Failures</h3>
<table cellpadding="4" cellspacing="0" border="1" style="border-collapse: collapse;">
<tr><th align="left">Time</th><th align="left">Recipient</th><th align="left">Subject</th><th align="left">Error</th></tr>
{{range .Failures}}<tr>
<td>{{fmtTime .Timestamp}}</td>
<td>{{.Recipient}}</td>
<td>{{.Subject}}</td>
<td>{{truncate .Error 200}}</td>
</tr>
{{end}}</table>
</body>
</html>
`))
