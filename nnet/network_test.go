package nnet

import (
	"math/rand"
	"testing"

	"github.com/Jopyth/LightNAS/num"
)

func testConfig() Config {
	return Config{
		Eta:        0.1,
		Momentum:   0.9,
		Shuffle:    true,
		TrainBatch: 4,
		TestBatch:  4,
		MaxEpoch:   20,
	}.AddLayers(
		Flatten{},
		Linear{Nout: 16},
		Activation{Atype: "tanh"},
		Linear{Nout: 3},
		LogRegression{},
	)
}

func TestConfigRoundTrip(t *testing.T) {
	DataDir = t.TempDir()
	conf := testConfig()
	if err := conf.Save("test.net"); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadConfig("test.net")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Eta != conf.Eta || loaded.TrainBatch != conf.TrainBatch || loaded.MaxEpoch != conf.MaxEpoch {
		t.Errorf("config mismatch: %+v", loaded)
	}
	if len(loaded.Layers) != len(conf.Layers) {
		t.Fatalf("got %d layers expect %d", len(loaded.Layers), len(conf.Layers))
	}
	for i, l := range loaded.Layers {
		if l.String() != conf.Layers[i].String() {
			t.Errorf("layer %d: %s != %s", i, l, conf.Layers[i])
		}
	}
}

func TestConfigSet(t *testing.T) {
	conf := Config{Eta: 0.1}
	conf, err := conf.SetString("Eta", "0.5")
	if err != nil || conf.Eta != 0.5 {
		t.Errorf("SetString: %v %v", conf.Eta, err)
	}
	conf, err = conf.SetBool("Shuffle", true)
	if err != nil || !conf.Shuffle {
		t.Errorf("SetBool: %v %v", conf.Shuffle, err)
	}
	if _, err = conf.SetString("Eta", "not a number"); err == nil {
		t.Error("expected parse error")
	}
}

func TestDataset(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	data := NewRandomData(25, []int{1, 4, 4}, 5, rng)
	dset := NewDataset(data, 10, 0, rng)
	if dset.Samples != 20 || dset.Batches != 2 {
		t.Fatalf("got %d samples in %d batches", dset.Samples, dset.Batches)
	}
	x, y, yOneHot := dset.GetBatch(0)
	if d := x.Dims(); d[0] != 10 || d[1] != 1 || d[2] != 4 || d[3] != 4 {
		t.Errorf("batch shape %v", d)
	}
	if len(y) != 10 {
		t.Errorf("labels %d", len(y))
	}
	if d := yOneHot.Dims(); d[0] != 10 || d[1] != 5 {
		t.Errorf("onehot shape %v", d)
	}
	for i, label := range y {
		if yOneHot.Data()[i*5+int(label)] != 1 {
			t.Errorf("sample %d: label %d not encoded", i, label)
		}
	}
}

func TestTrain(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	conf := testConfig()
	data := NewRandomData(8, []int{1, 4, 4}, 3, rng)
	dset := NewDataset(data, 4, 0, rng)
	net := New(conf, 4, data.Shape())
	net.InitWeights(rng)

	first := TrainEpoch(net, dset)
	var last float64
	for epoch := 2; epoch <= conf.MaxEpoch; epoch++ {
		last = TrainEpoch(net, dset)
	}
	if last >= first {
		t.Errorf("loss did not decrease: %v => %v", first, last)
	}
	if errVal := net.Error(dset, nil); errVal < 0 || errVal > 1 {
		t.Errorf("error rate %v out of range", errVal)
	}
}

func TestCopyTo(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	conf := Config{TrainBatch: 4, TestBatch: 8}.AddLayers(
		Flatten{},
		BatchNorm{},
		Linear{Nout: 2},
		LogRegression{},
	)
	src := New(conf, 4, []int{1, 2, 2})
	src.InitWeights(rng)
	// training forward pass updates the running stats
	x := num.NewArray(4, 1, 2, 2)
	for i := range x.Data() {
		x.Data()[i] = float32(rng.NormFloat64())
	}
	src.SetTraining(true)
	src.Fprop(x)

	dst := New(conf, 8, []int{1, 2, 2})
	src.CopyTo(dst)
	for i, l := range src.ParamLayers() {
		W, _ := l.Params()
		W2, _ := dst.ParamLayers()[i].Params()
		compareArray(t, "weights", W2, W.Data())
		if bn, ok := l.(*BatchNormLayer); ok {
			mean, vari := bn.RunningStats()
			mean2, vari2 := dst.ParamLayers()[i].(*BatchNormLayer).RunningStats()
			compareArray(t, "running mean", mean2, mean.Data())
			compareArray(t, "running var", vari2, vari.Data())
		}
	}
}

func TestSaveLoadWeights(t *testing.T) {
	DataDir = t.TempDir()
	rng := rand.New(rand.NewSource(7))
	conf := testConfig()
	net := New(conf, 4, []int{1, 4, 4})
	net.InitWeights(rng)
	saved := net.ExportParams()
	if err := net.SaveWeights("test.wts"); err != nil {
		t.Fatal(err)
	}
	net.InitWeights(rng)
	if err := net.LoadWeights("test.wts"); err != nil {
		t.Fatal(err)
	}
	for i, l := range net.ParamLayers() {
		W, B := l.Params()
		compareArray(t, "weights", W, saved[i].Weights)
		compareArray(t, "biases", B, saved[i].Biases)
	}
}
