package visualizer

import (
	"html/template"
	"sort"
	"time"

	"BotSpectra/internal/model"
)

// maxTableRows caps the flow table rendered on the dashboard. The full
// dataset stays available through the results API.
const maxTableRows = 100

// dashboardView is the template's data model.
type dashboardView struct {
	Source        string
	LoadedAt      time.Time
	HasData       bool
	Total         int
	Botnet        int
	Benign        int
	BotnetRatio   float64
	BotnetPercent float64
	Protocols     []protocolStat
	TopTalkers    []talkerStat
	Rows          []model.Prediction
	Truncated     bool
}

// protocolStat aggregates verdicts per protocol.
type protocolStat struct {
	Protocol string
	Flows    int
	Botnet   int
}

// talkerStat aggregates traffic per source address.
type talkerStat struct {
	SrcIP  string
	Flows  int
	Botnet int
	Bytes  uint64
}

// buildDashboard aggregates the loaded predictions for rendering.
func buildDashboard(preds []model.Prediction, source string, loadedAt time.Time) dashboardView {
	view := dashboardView{
		Source:   source,
		LoadedAt: loadedAt,
		HasData:  len(preds) > 0,
		Total:    len(preds),
	}
	if !view.HasData {
		return view
	}

	byProtocol := make(map[string]*protocolStat)
	byTalker := make(map[string]*talkerStat)

	for _, p := range preds {
		isBotnet := p.Label == model.LabelBotnet
		if isBotnet {
			view.Botnet++
		}

		ps, ok := byProtocol[p.Flow.Protocol]
		if !ok {
			ps = &protocolStat{Protocol: p.Flow.Protocol}
			byProtocol[p.Flow.Protocol] = ps
		}
		ps.Flows++

		ts, ok := byTalker[p.Flow.SrcIP]
		if !ok {
			ts = &talkerStat{SrcIP: p.Flow.SrcIP}
			byTalker[p.Flow.SrcIP] = ts
		}
		ts.Flows++
		ts.Bytes += p.Flow.BytesSrc + p.Flow.BytesDst
		if isBotnet {
			ps.Botnet++
			ts.Botnet++
		}
	}

	view.Benign = view.Total - view.Botnet
	view.BotnetRatio = float64(view.Botnet) / float64(view.Total)
	view.BotnetPercent = 100 * view.BotnetRatio

	for _, ps := range byProtocol {
		view.Protocols = append(view.Protocols, *ps)
	}
	sort.Slice(view.Protocols, func(i, j int) bool {
		if view.Protocols[i].Flows != view.Protocols[j].Flows {
			return view.Protocols[i].Flows > view.Protocols[j].Flows
		}
		return view.Protocols[i].Protocol < view.Protocols[j].Protocol
	})

	for _, ts := range byTalker {
		view.TopTalkers = append(view.TopTalkers, *ts)
	}
	sort.Slice(view.TopTalkers, func(i, j int) bool {
		if view.TopTalkers[i].Bytes != view.TopTalkers[j].Bytes {
			return view.TopTalkers[i].Bytes > view.TopTalkers[j].Bytes
		}
		return view.TopTalkers[i].SrcIP < view.TopTalkers[j].SrcIP
	})
	if len(view.TopTalkers) > 10 {
		view.TopTalkers = view.TopTalkers[:10]
	}

	view.Rows = preds
	if len(view.Rows) > maxTableRows {
		view.Rows = view.Rows[:maxTableRows]
		view.Truncated = true
	}
	return view
}

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>BotSpectra Dashboard</title>
<style>
  body { font-family: sans-serif; margin: 2rem; color: #222; }
  h1 { margin-bottom: 0.2rem; }
  .meta { color: #666; margin-bottom: 1.5rem; }
  .cards { display: flex; gap: 1rem; margin-bottom: 1.5rem; }
  .card { border: 1px solid #ddd; border-radius: 6px; padding: 1rem 1.5rem; }
  .card .num { font-size: 1.8rem; font-weight: bold; }
  .botnet { color: #b00020; }
  .benign { color: #1b7a3d; }
  table { border-collapse: collapse; margin-bottom: 2rem; }
  th, td { border: 1px solid #ddd; padding: 0.35rem 0.7rem; text-align: left; }
  th { background: #f5f5f5; }
  tr.flagged { background: #fdecea; }
</style>
</head>
<body>
<h1>BotSpectra</h1>
{{if not .HasData}}
<p class="meta">No predictions loaded yet. POST /visualize after an analysis run.</p>
{{else}}
<p class="meta">{{.Source}} &middot; loaded {{.LoadedAt.Format "2006-01-02 15:04:05"}} UTC</p>

<div class="cards">
  <div class="card"><div class="num">{{.Total}}</div>flows</div>
  <div class="card"><div class="num botnet">{{.Botnet}}</div>botnet</div>
  <div class="card"><div class="num benign">{{.Benign}}</div>benign</div>
  <div class="card"><div class="num">{{printf "%.1f" .BotnetPercent}}%</div>flagged</div>
</div>

<h2>Protocols</h2>
<table>
  <tr><th>Protocol</th><th>Flows</th><th>Botnet</th></tr>
  {{range .Protocols}}
  <tr><td>{{.Protocol}}</td><td>{{.Flows}}</td><td>{{.Botnet}}</td></tr>
  {{end}}
</table>

<h2>Top talkers</h2>
<table>
  <tr><th>Source</th><th>Flows</th><th>Botnet</th><th>Bytes</th></tr>
  {{range .TopTalkers}}
  <tr><td>{{.SrcIP}}</td><td>{{.Flows}}</td><td>{{.Botnet}}</td><td>{{.Bytes}}</td></tr>
  {{end}}
</table>

<h2>Flows{{if .Truncated}} (first {{len .Rows}}){{end}}</h2>
<table>
  <tr>
    <th>Source</th><th>Destination</th><th>Protocol</th>
    <th>Pkts &rarr;</th><th>Pkts &larr;</th><th>Bytes &rarr;</th><th>Bytes &larr;</th>
    <th>Duration</th><th>Label</th><th>Probability</th>
  </tr>
  {{range .Rows}}
  <tr{{if eq .Label "botnet"}} class="flagged"{{end}}>
    <td>{{.Flow.SrcIP}}:{{.Flow.SrcPort}}</td>
    <td>{{.Flow.DstIP}}:{{.Flow.DstPort}}</td>
    <td>{{.Flow.Protocol}}</td>
    <td>{{.Flow.PacketsSrc}}</td><td>{{.Flow.PacketsDst}}</td>
    <td>{{.Flow.BytesSrc}}</td><td>{{.Flow.BytesDst}}</td>
    <td>{{printf "%.2f" .Flow.Duration}}s</td>
    <td>{{.Label}}</td>
    <td>{{printf "%.3f" .Probability}}</td>
  </tr>
  {{end}}
</table>
{{end}}
</body>
</html>
`))
