package api

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/dustin/go-humanize"

	"github.com/talgya/scorelog-viewer/internal/scorelog"
	"github.com/talgya/scorelog-viewer/internal/session"
)

var pageFuncs = template.FuncMap{
	"comma": func(v float64) string {
		if scorelog.Finite(v) == nil {
			return "-"
		}
		return humanize.CommafWithDigits(v, 2)
	},
	"turn": func(p *float64) string {
		if p == nil {
			return "-"
		}
		return humanize.Commaf(*p)
	},
	"chartURL": func(u session.Update) string {
		q := url.Values{}
		q.Set("file", u.Source)
		q.Set("tag", u.Tag)
		if u.Stacked {
			q.Set("stacked", "true")
		}
		return "/api/v1/chart.png?" + q.Encode()
	},
}

var indexTmpl = template.Must(template.New("index").Funcs(pageFuncs).Parse(indexHTML))

// handleIndex renders the viewer page with the initial state already
// filled in; the script then takes over over the WebSocket.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	u, _ := s.view(r)
	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, u); err != nil {
		slog.Error("template error", "error", err)
		http.Error(w, "page rendering failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

const indexHTML = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Scorelog viewer</title>
<script src="https://cdn.jsdelivr.net/npm/apexcharts"></script>
<style>
  body { font-family: system-ui, sans-serif; margin: 16px; color: #222; }
  #controls select, #controls label { margin-right: 12px; }
  #status { color: #666; margin: 8px 0; min-height: 1.2em; }
  table { border-collapse: collapse; margin-top: 12px; }
  th, td { border: 1px solid #ccc; padding: 3px 8px; text-align: right; }
  th:first-child, td:first-child { text-align: left; }
  .advisory { color: #a60; font-style: italic; }
  .hidden { display: none; }
</style>
</head>
<body>
<div id="controls">
  <select id="fileSelect">
  {{- range .Sources}}
    <option value="{{.ID}}"{{if eq .ID $.Source}} selected{{end}}>{{.Label}}</option>
  {{- end}}
  </select>
  <select id="tagSelect">
  {{- range .Tags}}
    <option value="{{.ID}}"{{if eq .ID $.Tag}} selected{{end}}>{{.Label}}</option>
  {{- end}}
  </select>
  {{- if .Capabilities.Stacked}}
  <label><input type="checkbox" id="stackedInput"{{if .Stacked}} checked{{end}}> Stacked</label>
  {{- end}}
</div>
<div id="status">{{.Status}}</div>
<div id="chart"><noscript><img src="{{chartURL .}}" alt="chart"></noscript></div>

<div id="legend"{{if not .View.ShowLegend}} class="hidden"{{end}}>
{{- with .View.Legend}}
  <h3>{{.Title}}</h3>
  <table>
    <tr><th>Code</th><th>Government</th></tr>
    {{- range .Entries}}
    <tr><td>{{.Code}}</td><td>{{.Name}}</td></tr>
    {{- end}}
  </table>
  <p>{{.Note}} <a href="{{.Link}}">{{.Link}}</a></p>
{{- end}}
</div>

<div id="stats"{{if not .View.ShowStats}} class="hidden"{{end}}>
{{- with .View.Stats}}
  <table>
    <tr><th>Player</th><th>Max</th><th>Max turn</th>{{if .ShowTotal}}<th>Total</th>{{end}}</tr>
    {{- range .Rows}}
    <tr><td>{{.Name}}</td><td>{{if .HasMax}}{{comma .Max}}{{else}}-{{end}}</td><td>{{turn .MaxTurn}}</td>{{if $.View.Stats.ShowTotal}}<td>{{comma .Total}}</td>{{end}}</tr>
    {{- end}}
  </table>
  {{- if .Advisory}}<p class="advisory">{{.Advisory}}</p>{{end}}
{{- end}}
</div>

<script>
const initial = {{.}};
const fileSelect = document.getElementById("fileSelect");
const tagSelect = document.getElementById("tagSelect");
const stackedInput = document.getElementById("stackedInput");
const statusEl = document.getElementById("status");
const legendEl = document.getElementById("legend");
const statsEl = document.getElementById("stats");

let chart = null;
let lastGeneration = 0;

function esc(s) {
  return String(s).replace(/[&<>"]/g, c => ({"&": "&amp;", "<": "&lt;", ">": "&gt;", '"': "&quot;"}[c]));
}

function fmt(v) {
  return v === null || v === undefined ? "-" : Number(v).toLocaleString();
}

function renderTags(u) {
  tagSelect.innerHTML = u.tags.map(t =>
    '<option value="' + esc(t.id) + '"' + (t.id === u.tag ? " selected" : "") + ">" + esc(t.label) + "</option>").join("");
}

function renderLegend(view) {
  if (!view.show_legend || !view.legend) { legendEl.classList.add("hidden"); return; }
  const l = view.legend;
  legendEl.innerHTML = "<h3>" + esc(l.title) + "</h3><table><tr><th>Code</th><th>Government</th></tr>" +
    l.entries.map(e => "<tr><td>" + esc(e.code) + "</td><td>" + esc(e.name) + "</td></tr>").join("") +
    "</table><p>" + esc(l.note) + ' <a href="' + esc(l.link) + '">' + esc(l.link) + "</a></p>";
  legendEl.classList.remove("hidden");
}

function renderStats(view) {
  if (!view.show_stats || !view.stats) { statsEl.classList.add("hidden"); return; }
  const s = view.stats;
  let html = "<table><tr><th>Player</th><th>Max</th><th>Max turn</th>" + (s.show_total ? "<th>Total</th>" : "") + "</tr>";
  for (const r of s.rows) {
    html += "<tr><td>" + esc(r.name) + "</td><td>" + fmt(r.max) + "</td><td>" + fmt(r.max_turn) + "</td>" +
      (s.show_total ? "<td>" + fmt(r.total) + "</td>" : "") + "</tr>";
  }
  html += "</table>";
  if (s.advisory) html += '<p class="advisory">' + esc(s.advisory) + "</p>";
  statsEl.innerHTML = html;
  statsEl.classList.remove("hidden");
}

function render(u) {
  if (u.generation < lastGeneration) return;
  lastGeneration = u.generation;
  statusEl.textContent = u.status;
  fileSelect.value = u.source;
  renderTags(u);
  if (stackedInput) stackedInput.checked = u.stacked;
  const opts = Object.assign({}, u.view.options, {series: u.view.series});
  if (!chart) {
    chart = new ApexCharts(document.querySelector("#chart"), opts);
    chart.render();
  } else {
    chart.updateOptions(opts, false, true);
  }
  renderLegend(u.view);
  renderStats(u.view);
}

render(initial);

const proto = location.protocol === "https:" ? "wss://" : "ws://";
const params = new URLSearchParams({file: initial.source || "", tag: initial.tag || "", stacked: String(initial.stacked)});
const ws = new WebSocket(proto + location.host + "/ws?" + params.toString());
ws.onmessage = ev => {
  const msg = JSON.parse(ev.data);
  if (msg.type === "update") render(msg.payload);
  else statusEl.textContent = msg.payload;
};
ws.onclose = () => { statusEl.textContent = "Disconnected."; };

fileSelect.addEventListener("change", e => ws.send(JSON.stringify({type: "select_source", source: e.target.value})));
tagSelect.addEventListener("change", e => ws.send(JSON.stringify({type: "select_tag", tag: e.target.value})));
if (stackedInput) {
  stackedInput.addEventListener("change", e => ws.send(JSON.stringify({type: "set_stacked", stacked: e.target.checked})));
}
</script>
</body>
</html>
`
