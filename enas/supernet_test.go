package enas

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/Jopyth/LightNAS/nnet"
)

// small search space for tests: two stages of one basic block each
func testSupernet(t *testing.T) *Supernet {
	t.Helper()
	net, err := Assemble(1, BasicBlock, []int{1, 1}, []int{4, 4, 8},
		Options{Classes: 3, Stem: "thumbnail", Bits: 1})
	if err != nil {
		t.Fatal(err)
	}
	return net
}

func TestAssemble(t *testing.T) {
	net := testSupernet(t)
	if len(net.Blocks) != 2 {
		t.Fatalf("got %d blocks expect 2", len(net.Blocks))
	}
	// first stage keeps the resolution, later stages halve it
	if s := net.Blocks[0].Spec(); s.Stride != 1 || s.Downsample {
		t.Errorf("stage 1 block: %+v", s)
	}
	if s := net.Blocks[1].Spec(); s.Stride != 2 || !s.Downsample {
		t.Errorf("stage 2 block: %+v", s)
	}
	if _, err := Assemble(1, BasicBlock, []int{1, 1}, []int{4, 8}, Options{}); !IsConfiguration(err) {
		t.Errorf("stage count mismatch: %v", err)
	}
}

// the assembled ordering is fixed: conv+bn+relu+maxpool for the imagenet
// stem, a single conv for thumbnail, and v1 adds a batch norm directly after
// the stem while v2 normalizes before the final activation
func TestStemOrdering(t *testing.T) {
	cases := []struct {
		version int
		stem    string
		expect  []string
	}{
		{1, "imagenet", []string{"batchNorm", "qconv", "batchNorm", "activation", "pool", "batchNorm", "basic"}},
		{2, "imagenet", []string{"batchNorm", "qconv", "batchNorm", "activation", "pool", "basic"}},
		{1, "thumbnail", []string{"batchNorm", "qconv", "batchNorm", "basic"}},
		{2, "thumbnail", []string{"batchNorm", "qconv", "basic"}},
	}
	for _, tc := range cases {
		net, err := Assemble(tc.version, BasicBlock, []int{1}, []int{4, 4},
			Options{Classes: 3, Stem: tc.stem, Bits: 1})
		if err != nil {
			t.Fatal(err)
		}
		for i, want := range tc.expect {
			if got := strings.Fields(net.Layers[i].ToString())[0]; got != want {
				t.Errorf("%s v%d layer %d: %s expect %s", tc.stem, tc.version, i, got, want)
			}
		}
	}
}

func TestResNet50Structure(t *testing.T) {
	// same stage schedule as resnet-50 with narrow channels
	net, err := Assemble(1, Bottleneck, []int{3, 4, 6, 3}, []int{8, 8, 16, 32, 64},
		Options{Classes: 10, Stem: "thumbnail", Bits: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(net.Blocks) != 16 {
		t.Fatalf("got %d blocks expect 16", len(net.Blocks))
	}
	starts := []int{0, 3, 7, 13}
	for i, b := range net.Blocks {
		spec := b.Spec()
		if spec.Kind != Bottleneck {
			t.Fatalf("block %d: kind %v", i, spec.Kind)
		}
		first := false
		for _, s := range starts {
			if i == s {
				first = true
			}
		}
		wantStride := 1
		if first && i > 0 {
			wantStride = 2
		}
		if spec.Stride != wantStride {
			t.Errorf("block %d: stride %d expect %d", i, spec.Stride, wantStride)
		}
		if !first && spec.Downsample {
			t.Errorf("block %d: unexpected downsample", i)
		}
	}
}

func TestArchitecture(t *testing.T) {
	net := testSupernet(t)
	if err := net.SetArchitecture([]int{1, 32}); err != nil {
		t.Fatal(err)
	}
	bits := net.Architecture()
	if bits[0] != 1 || bits[1] != 32 {
		t.Errorf("architecture %v", bits)
	}
	expect := Latency(1) + Latency(32)
	if l := net.Latency(); math.Abs(l-expect) > 1e-12 {
		t.Errorf("latency %v expect %v", l, expect)
	}
	if err := net.SetArchitecture([]int{1, 32, 1}); !IsConfiguration(err) {
		t.Errorf("length mismatch: %v", err)
	}
	rng := rand.New(rand.NewSource(1))
	for _, bits := range net.Sample(rng, []int{32}) {
		if bits != 32 {
			t.Errorf("sample outside space: %v", bits)
		}
	}
	avg := (Latency(1) + Latency(32)) / 2 * 2
	if l := net.AvgLatency([]int{1, 32}); math.Abs(l-avg) > 1e-12 {
		t.Errorf("avg latency %v expect %v", l, avg)
	}
}

func TestPrune(t *testing.T) {
	net := testSupernet(t)
	rng := rand.New(rand.NewSource(4))
	conf := nnet.Config{TrainBatch: 2, TestBatch: 2}
	wrapped := net.Network(conf, 2, []int{3, 8, 8})
	wrapped.InitWeights(rng)
	net.SetArchitecture([]int{32, 1})

	pruned, err := net.Prune()
	if err != nil {
		t.Fatal(err)
	}
	if len(pruned.Blocks) != len(net.Blocks) || len(pruned.Layers) != len(net.Layers) {
		t.Fatalf("pruned %d blocks %d layers", len(pruned.Blocks), len(pruned.Layers))
	}
	for i, b := range pruned.Blocks {
		if b.Bits() != net.Blocks[i].Bits() {
			t.Errorf("block %d: bits %d expect %d", i, b.Bits(), net.Blocks[i].Bits())
		}
		convs, partner := b.sharedConvs(), net.Blocks[i].sharedConvs()
		for j := range convs {
			if !convs[j].SharesWeights(partner[j]) {
				t.Errorf("block %d conv %d does not alias the trained weights", i, j)
			}
		}
	}
}

// a pruned copy must reproduce the supernet's eval mode outputs: the conv
// weights are aliased and the batch norm state is copied across
func TestPruneEval(t *testing.T) {
	net := testSupernet(t)
	rng := rand.New(rand.NewSource(6))
	conf := nnet.Config{TrainBatch: 2, TestBatch: 2}
	wrapped := net.Network(conf, 2, []int{3, 8, 8})
	wrapped.InitWeights(rng)
	net.SetArchitecture([]int{1, 32})

	// move the running statistics away from their initial values
	x := randInput(rng, 2, 3, 8, 8)
	wrapped.SetTraining(true)
	for i := 0; i < 3; i++ {
		wrapped.Fprop(x)
	}
	wrapped.SetTraining(false)
	want := append([]float32{}, wrapped.Fprop(x).Data()...)

	pruned, err := net.Prune()
	if err != nil {
		t.Fatal(err)
	}
	sub := pruned.Network(conf, 2, []int{3, 8, 8})
	sub.SetTraining(false)
	got := sub.Fprop(x).Data()
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > eps {
			t.Fatalf("output %d: %v expect %v", i, got[i], want[i])
		}
	}
}

func TestGraph(t *testing.T) {
	net := testSupernet(t)
	g := net.Graph()
	if !strings.HasPrefix(g, "digraph supernet {") {
		t.Errorf("graph output:\n%s", g)
	}
	if !strings.Contains(g, "lightblue") {
		t.Error("binary blocks should be coloured")
	}
	if !strings.Contains(net.String(), "2 blocks") {
		t.Errorf("description:\n%s", net)
	}
}

func TestScheduler(t *testing.T) {
	net := testSupernet(t)
	rng := rand.New(rand.NewSource(5))
	conf := nnet.Config{Eta: 0.05, Momentum: 0.9, Shuffle: true, TrainBatch: 4, TestBatch: 4, MaxEpoch: 3}
	data := nnet.NewRandomData(12, []int{3, 8, 8}, 3, rng)
	train := nnet.NewDataset(data, 4, 0, rng)
	test := nnet.NewDataset(data, 4, 0, rng)

	wrapped := net.Network(conf, 4, data.Shape())
	wrapped.InitWeights(rng)

	sched := NewScheduler(net, SearchConfig{Epochs: 3}, rng)
	best := sched.Run(wrapped, train, test)
	if len(sched.History) != 3 {
		t.Fatalf("got %d trials expect 3", len(sched.History))
	}
	if best.Epoch < 1 || best.Epoch > 3 || len(best.Bits) != 2 {
		t.Errorf("best trial %+v", best)
	}
	if best.Reward <= 0 {
		t.Errorf("reward %v", best.Reward)
	}
	// the supernet is left set to the best sampled architecture
	bits := net.Architecture()
	for i := range bits {
		if bits[i] != best.Bits[i] {
			t.Errorf("architecture %v best %v", bits, best.Bits)
		}
	}
}

func TestModelSize(t *testing.T) {
	conf := nnet.Config{}.AddLayers(
		nnet.QConv{Nfeats: 2, Size: 3, Bits: 1},
		nnet.Flatten{},
		nnet.Linear{Nout: 2},
		nnet.LogRegression{},
	)
	net := nnet.New(conf, 2, []int{1, 4, 4})
	size := ModelSize(net)
	// 2x1x3x3 binary conv weights, 8x2+2 full precision linear parameters
	if size.BinaryWeights != 18 {
		t.Errorf("binary weights %d", size.BinaryWeights)
	}
	if size.FPWeights != 8*2+2 {
		t.Errorf("fp weights %d", size.FPWeights)
	}
	if size.Bits() != 18+32*18 {
		t.Errorf("bits %d", size.Bits())
	}
	if r := size.BinaryRatio(); math.Abs(r-0.5) > 1e-12 {
		t.Errorf("binary ratio %v", r)
	}
}

func TestBinarizeWeights(t *testing.T) {
	conf := nnet.Config{}.AddLayers(
		nnet.QConv{Nfeats: 1, Size: 2, Bits: 1},
		nnet.Flatten{},
		nnet.Linear{Nout: 2},
		nnet.LogRegression{},
	)
	net := nnet.New(conf, 1, []int{1, 2, 2})
	conv := net.ParamLayers()[0]
	W, _ := conv.Params()
	copy(W.Data(), []float32{0.5, -0.2, 0.1, -0.9})
	if n := BinarizeWeights(net); n != 4 {
		t.Errorf("snapped %d weights", n)
	}
	expect := []float32{1, -1, 1, -1}
	for i, v := range W.Data() {
		if v != expect[i] {
			t.Errorf("weight %d: %v", i, v)
		}
	}
}

func TestConvertSize(t *testing.T) {
	cases := []struct {
		bytes  float64
		expect string
	}{
		{0, "0B"},
		{500, "500 B"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1 << 20, "1 MB"},
	}
	for _, tc := range cases {
		if got := ConvertSize(tc.bytes); got != tc.expect {
			t.Errorf("ConvertSize(%v) = %q expect %q", tc.bytes, got, tc.expect)
		}
	}
}
