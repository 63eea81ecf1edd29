package web

import (
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
)

var authKey = []byte("ahPh7ooQuaige3oh")

// Template and main menu definition
type Templates struct {
	*template.Template
	Menu    []Link
	Options []Link
	store   sessions.Store
}

type Link struct {
	Url      string
	Name     string
	Selected bool
	Submit   bool
}

// Parse the embedded templates and initialise main menu
func NewTemplates() (*Templates, error) {
	var err error
	t := &Templates{Menu: []Link{}, Options: []Link{}}
	t.Template, err = template.New("pages").Parse(pageTemplates)
	if err != nil {
		return nil, err
	}
	t.store = sessions.NewCookieStore(authKey)
	return t, err
}

func (t *Templates) Clone() *Templates {
	return &Templates{
		Template: t.Template,
		Menu:     append([]Link{}, t.Menu...),
		Options:  append([]Link{}, t.Options...),
		store:    t.store,
	}
}

func (t *Templates) Select(url string) *Templates {
	for i, key := range t.Menu {
		t.Menu[i].Selected = strings.HasPrefix(key.Url, url)
	}
	return t
}

func (t *Templates) AddMenuItem(l Link) *Templates {
	t.Menu = append(t.Menu, l)
	return t
}

func (t *Templates) AddOption(l Link) *Templates {
	t.Options = append(t.Options, l)
	return t
}

func (t *Templates) SelectOptions(names []string) *Templates {
	for i, key := range t.Options {
		t.Options[i].Selected = false
		for _, name := range names {
			if key.Name == name {
				t.Options[i].Selected = true
			}
		}
	}
	return t
}

func logError(w http.ResponseWriter, err error) {
	log.Println(err)
	http.Error(w, fmt.Sprint(err), http.StatusInternalServerError)
}

const pageTemplates = `
{{define "header"}}<!DOCTYPE html>
<html>
<head>
<title>LightNAS</title>
<style>
body { font-family: sans-serif; margin: 0; background: #fafafa; color: #222; }
a { color: #06c; text-decoration: none; }
.menu { background: #223; padding: 8px 16px; }
.menu a { color: #ccd; margin-right: 16px; }
.menu a.selected { color: #fff; font-weight: bold; }
.options { padding: 6px 16px; background: #eee; }
.options a { margin-right: 12px; }
.options a.selected { font-weight: bold; }
.content { padding: 12px 16px; }
table { border-collapse: collapse; margin: 8px 0; }
th, td { border: 1px solid #ccc; padding: 3px 8px; text-align: right; }
th { background: #eee; }
td.text, th.text { text-align: left; }
tr.best td { background: #dfd; }
.error { color: #c00; }
input.field { width: 10em; }
</style>
</head>
<body>
<div class="menu">
{{range .Menu}}<a href="{{.Url}}" {{if .Selected}}class="selected"{{end}}>{{.Name}}</a>{{end}}
</div>
<div class="options">
{{range .Options}}{{if .Submit}}<a href="#" onclick="var f=document.getElementById('form');f.action='{{.Url}}';f.submit()">{{.Name}}</a>{{else}}<a href="{{.Url}}" {{if .Selected}}class="selected"{{end}}>{{.Name}}</a>{{end}}{{end}}
</div>
<div class="content">
{{end}}

{{define "footer"}}</div>
</body>
</html>{{end}}

{{define "train"}}{{template "header" .}}
<h3>{{.Heading}}</h3>
<div id="stats">loading...</div>
<script>
function refresh() {
	fetch("/stats").then(function(r) { return r.text(); }).then(function(text) {
		document.getElementById("stats").innerHTML = text;
	});
}
var ws = new WebSocket("ws://" + window.location.host + "/ws");
ws.onmessage = function(ev) {
	var pos = ev.data.indexOf(":");
	document.getElementById("run").textContent = ev.data.slice(0, pos);
	document.getElementById("epoch").textContent = ev.data.slice(pos+1);
	refresh();
};
refresh();
</script>
{{template "footer" .}}{{end}}

{{define "stats"}}
<table>
<tr><th>epoch</th>{{range .Headers}}<th>{{.}}</th>{{end}}</tr>
{{range .LatestStats 20}}<tr><td>{{.Epoch}}</td>{{range .Format}}<td>{{.}}</td>{{end}}</tr>
{{end}}
</table>
<p>{{.RunTime}}</p>
{{.LossPlot 500 300}}
{{.ErrorPlot 500 300}}
{{if .History}}
<h4>history</h4>
<table>
<tr><th>run</th><th class="text">params</th><th>epochs</th>{{range .Headers}}<th>{{.}}</th>{{end}}</tr>
{{range .History}}<tr><td>{{.Run}}</td><td class="text">{{.Params}}</td><td>{{.Stats.Epoch}}</td>{{range .Stats.Format}}<td>{{.}}</td>{{end}}</tr>
{{end}}
</table>
{{end}}
{{end}}

{{define "config"}}{{template "header" .}}
<h3>{{.Heading}}</h3>
{{if .Flash}}<p class="error">{{.Flash}}</p>{{end}}
<form id="form" method="post" action="/config/save">
<table>
{{range .Fields}}<tr><td class="text">{{.Name}}</td>
<td class="text">{{if .Boolean}}<input type="checkbox" name="{{.Name}}" value="true" {{if .On}}checked{{end}}>{{else}}<input class="field" name="{{.Name}}" value="{{.Value}}">{{end}}</td>
<td class="text error">{{.Error}}</td></tr>
{{end}}
</table>
</form>
<form id="loadConfig" method="get" action="/config/load"></form>
{{if .Layers}}
<h4>layers</h4>
<table>
{{range .Layers}}<tr><td>{{.Index}}</td><td class="text">{{.Desc}}</td></tr>
{{end}}
</table>
{{end}}
{{template "footer" .}}{{end}}

{{define "search"}}{{template "header" .}}
<h3>{{.Heading}}</h3>
<table>
<tr><th>block</th><th class="text">kind</th><th>channels</th><th>stride</th><th>bits</th><th>latency</th></tr>
{{range .Blocks}}<tr><td>{{.Index}}</td><td class="text">{{.Kind}}</td><td>{{.Channels}}</td><td>{{.Stride}}</td><td>{{.Bits}}</td><td>{{.Latency}}</td></tr>
{{end}}
</table>
<p>total latency: {{.Latency}} &nbsp; target: {{.Target}}</p>
{{.RewardPlot 500 300}}
<h4>samples</h4>
<table>
<tr><th>epoch</th><th class="text">bits</th><th>loss</th><th>error</th><th>latency</th><th>reward</th></tr>
{{range .Trials 20}}<tr{{if .Best}} class="best"{{end}}><td>{{.Epoch}}</td><td class="text">{{.Bits}}</td><td>{{.Loss}}</td><td>{{.Error}}</td><td>{{.Latency}}</td><td>{{.Reward}}</td></tr>
{{end}}
</table>
{{template "footer" .}}{{end}}
`
