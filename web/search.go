package web

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/Jopyth/LightNAS/enas"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
)

type SearchPage struct {
	*Templates
	net *Network
}

// Base data for handler functions to show the architecture search state
func NewSearchPage(t *Templates, net *Network) *SearchPage {
	p := &SearchPage{net: net}
	p.Templates = t.Select("/search")
	return p
}

// Handler function for the search template
func (p *SearchPage) Base() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.net.Lock()
		defer p.net.Unlock()
		if err := p.ExecuteTemplate(w, "search", p); err != nil {
			logError(w, err)
		}
	}
}

func (p *SearchPage) Heading() template.HTML {
	s := fmt.Sprintf("resnet%d v%d: epoch %d/%d  best reward %.4f",
		p.net.Depth, p.net.Version, p.net.Epoch, p.net.MaxEpoch, p.net.Best.Reward)
	return template.HTML(s)
}

type blockRow struct {
	Index    int
	Kind     string
	Channels int
	Stride   int
	Bits     int
	Latency  string
}

func (p *SearchPage) Blocks() []blockRow {
	res := []blockRow{}
	if p.net.Super == nil {
		return res
	}
	for i, b := range p.net.Super.Blocks {
		spec := b.Spec()
		res = append(res, blockRow{
			Index:    i,
			Kind:     spec.Kind.String(),
			Channels: spec.Channels,
			Stride:   spec.Stride,
			Bits:     b.Bits(),
			Latency:  fmt.Sprintf("%.2f", b.LatencyFunction(0)),
		})
	}
	return res
}

func (p *SearchPage) Latency() string {
	if p.net.Super == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", p.net.Super.Latency())
}

func (p *SearchPage) Target() string {
	if p.net.sched == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", p.net.sched.Conf.LatencyTarget)
}

type trialRow struct {
	Epoch   int
	Bits    string
	Loss    string
	Error   string
	Latency string
	Reward  string
	Best    bool
}

func (p *SearchPage) Trials(n int) []trialRow {
	res := []trialRow{}
	last := len(p.net.Trials) - 1
	for i := last; i >= 0 && i > last-n; i-- {
		t := p.net.Trials[i]
		res = append(res, trialRow{
			Epoch:   t.Epoch,
			Bits:    fmt.Sprint(t.Bits),
			Loss:    fmt.Sprintf("%.4f", t.Loss),
			Error:   fmt.Sprintf("%.2f%%", t.Error*100),
			Latency: fmt.Sprintf("%.2f", t.Latency),
			Reward:  fmt.Sprintf("%.4f", t.Reward),
			Best:    t.Epoch == p.net.Best.Epoch && p.net.Best.Bits != nil,
		})
	}
	return res
}

func (p *SearchPage) RewardPlot(width, height int) template.HTML {
	plt := newPlot()
	for i, val := range []struct {
		name string
		get  func(enas.Trial) float64
	}{
		{"reward ", func(t enas.Trial) float64 { return t.Reward }},
		{"accuracy ", func(t enas.Trial) float64 { return 1 - t.Error }},
	} {
		line := newTrialPlot(p.net.Trials, val.get, i)
		plt.Add(line)
		plt.Legend.Add(val.name, line)
	}
	return writePlot(plt, width, height)
}

func newTrialPlot(trials []enas.Trial, get func(enas.Trial) float64, ix int) linePlot {
	var pts plotter.XYs
	xmax, ymax := 1.0, 0.0
	for _, t := range trials {
		pt := plotter.XY{X: float64(t.Epoch), Y: get(t)}
		pts = append(pts, pt)
		if pt.X > xmax {
			xmax = pt.X
		}
		if pt.Y > ymax {
			ymax = pt.Y
		}
	}
	l, _ := plotter.NewLine(pts)
	l.Width = 2
	l.Color = plotutil.Color(ix)
	return linePlot{Line: l, xmin: 1, xmax: xmax, ymin: 0, ymax: ymax}
}
