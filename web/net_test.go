package web

import (
	"testing"

	"github.com/Jopyth/LightNAS/nnet"
)

func TestRunConfig(t *testing.T) {
	conf := nnet.Config{Eta: 0.01, Lambda: 1, TrainBatch: 100, TrainRuns: 1}
	param := []TuneParams{
		{Name: "Eta", Values: []string{"0.1", "0.05", "0.15"}},
		{Name: "Lambda", Values: []string{"3", "5"}},
		{Name: "TrainBatch", Values: []string{"10", "20"}},
	}
	runs := getRunConfig(conf, param)
	if len(runs) != 12 {
		t.Errorf("got %d runs expect 12", len(runs))
	}
	if runs[0].Eta != 0.1 || runs[0].Lambda != 3 || runs[0].TrainBatch != 10 {
		t.Errorf("unexpected first run config: %+v", runs[0])
	}
}

func TestTemplates(t *testing.T) {
	tmpl, err := NewTemplates()
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"train", "stats", "config", "search"} {
		if tmpl.Lookup(name) == nil {
			t.Errorf("missing template %s", name)
		}
	}
}
