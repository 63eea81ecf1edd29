package main

import (
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/Jopyth/LightNAS/enas"
	"github.com/Jopyth/LightNAS/nnet"
)

// Runs the bit width architecture search on a ResNet supernet. By default a
// small synthetic dataset is used so the search loop can be exercised
// without real data.
func main() {
	var depth, version, epochs, warmup, batch, samples int
	var eta, gradCancel, target, penalty float64
	var dataset, logDir string
	var seed int64
	flag.IntVar(&depth, "depth", 18, "resnet depth: 18, 34, 50, 101 or 152")
	flag.IntVar(&version, "version", 1, "resnet version: 1 or 2")
	flag.IntVar(&epochs, "epochs", 10, "number of search epochs")
	flag.IntVar(&warmup, "warmup", 0, "number of warmup epochs")
	flag.IntVar(&batch, "batch", 10, "batch size")
	flag.IntVar(&samples, "samples", 100, "synthetic dataset size")
	flag.Float64Var(&eta, "eta", 0.01, "learning rate")
	flag.Float64Var(&gradCancel, "cancel", 1, "gradient cancel threshold")
	flag.Float64Var(&target, "target", 0, "latency target, 0 for the search space average")
	flag.Float64Var(&penalty, "penalty", 0.07, "latency penalty exponent")
	flag.StringVar(&dataset, "data", "", "registered dataset name, empty for synthetic data")
	flag.StringVar(&logDir, "logdir", "", "directory for per epoch architecture dumps")
	flag.Int64Var(&seed, "seed", 0, "random number seed")
	flag.Parse()

	rng := nnet.SetSeed(seed)

	conf := nnet.Config{
		Eta:        eta,
		Momentum:   0.9,
		GradCancel: gradCancel,
		Shuffle:    true,
		TrainBatch: batch,
		TestBatch:  batch,
		MaxEpoch:   warmup + epochs,
	}

	var train, test *nnet.Dataset
	var classes int
	var inShape []int
	if dataset == "" {
		data := nnet.NewRandomData(samples, []int{3, 32, 32}, 10, rng)
		train = nnet.NewDataset(data, batch, 0, rng)
		test = nnet.NewDataset(data, batch, 0, rng)
		classes, inShape = 10, data.Shape()
	} else {
		conf.DataSet = dataset
		data, err := nnet.LoadData(dataset)
		nnet.CheckErr(err)
		train = nnet.NewDataset(data["train"], batch, 0, rng)
		test = nnet.NewDataset(data["test"], batch, 0, rng)
		classes, inShape = train.Classes(), data["train"].Shape()
	}

	supernet, err := enas.GetResNet(version, depth, enas.Options{
		Classes: classes, Stem: "thumbnail", GradCancel: gradCancel,
	})
	nnet.CheckErr(err)

	net := supernet.Network(conf, batch, inShape)
	net.InitWeights(rng)
	fmt.Printf("search space: resnet%d v%d with %d blocks\n", depth, version, len(supernet.Blocks))

	sched := enas.NewScheduler(supernet, enas.SearchConfig{
		Epochs: epochs, WarmupEpochs: warmup,
		LatencyTarget: target, LatencyPenalty: penalty,
	}, rng)
	if logDir != "" {
		sched.OnEpoch(func(s *enas.Scheduler, epoch int) {
			saveGraph(logDir, epoch, s.Net)
		})
	}
	best := sched.Run(net, train, test)
	fmt.Printf("best architecture (epoch %d): bits=%v latency=%.2f error=%.2f%% reward=%.4f\n",
		best.Epoch, best.Bits, best.Latency, best.Error*100, best.Reward)

	// derive a standalone network for the best sample, aliasing the trained
	// weights, and save it
	pruned, err := supernet.Prune()
	nnet.CheckErr(err)
	final := pruned.Network(conf, batch, inShape)
	name := fmt.Sprintf("resnet%d_v%d_enas.wts", depth, version)
	err = final.SaveWeights(name)
	nnet.CheckErr(err)
	fmt.Println("saved sampled model weights to", name)
}

func saveGraph(logDir string, epoch int, net *enas.Supernet) {
	dir := path.Join(logDir, "architectures")
	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	base := path.Join(dir, fmt.Sprintf("epoch_%d", epoch))
	if err := os.WriteFile(base+".dot", []byte(net.Graph()), 0644); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	if err := os.WriteFile(base+".txt", []byte(net.String()), 0644); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}
