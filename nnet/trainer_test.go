package nnet

import (
	"math/rand"
	"testing"
)

func TestStatsHeaders(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	data := map[string]Data{
		"train": NewRandomData(8, []int{1, 4, 4}, 3, rng),
		"test":  NewRandomData(8, []int{1, 4, 4}, 3, rng),
		"valid": NewRandomData(8, []int{1, 4, 4}, 3, rng),
	}
	h := StatsHeaders(data)
	expect := []string{"loss", "train error", "test error", "valid error", "valid avg"}
	if len(h) != len(expect) {
		t.Fatalf("headers %v", h)
	}
	for i := range h {
		if h[i] != expect[i] {
			t.Errorf("header %d: %s expect %s", i, h[i], expect[i])
		}
	}
}

func TestTrainer(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	conf := testConfig()
	conf.MaxEpoch = 5
	data := map[string]Data{
		"train": NewRandomData(8, []int{1, 4, 4}, 3, rng),
		"test":  NewRandomData(8, []int{1, 4, 4}, 3, rng),
	}
	dset := NewDataset(data["train"], conf.TrainBatch, 0, rng)
	net := New(conf, conf.TrainBatch, data["train"].Shape())
	net.InitWeights(rng)

	test := NewTestBase().Init(conf, data, rng)
	Train(net, dset, test)
	if len(test.Stats) != conf.MaxEpoch {
		t.Fatalf("got %d stats epochs expect %d", len(test.Stats), conf.MaxEpoch)
	}
	for i, s := range test.Stats {
		if s.Epoch != i+1 {
			t.Errorf("stats %d: epoch %d", i, s.Epoch)
		}
		// loss plus train and test error
		if len(s.Values) != 3 {
			t.Errorf("stats %d: values %v", i, s.Values)
		}
	}
	s := test.Stats[0].Copy()
	s.Values[0] = -1
	if test.Stats[0].Values[0] == -1 {
		t.Error("Copy should not alias values")
	}
}
