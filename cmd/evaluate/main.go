package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Jopyth/LightNAS/enas"
	"github.com/Jopyth/LightNAS/nnet"
)

// Evaluates a trained model: snaps binary weights to -1/+1, reports the
// compressed model size and measures the classification accuracy on the
// test set.
func main() {
	var verbose bool
	var limit int
	flag.BoolVar(&verbose, "verbose", false, "print per layer weight breakdown")
	flag.IntVar(&limit, "limit", 0, "limit evaluation to this many batches")
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Println("Usage: evaluate [opts] <model>")
		os.Exit(1)
	}
	model := flag.Arg(flag.NArg() - 1)
	conf, err := nnet.LoadConfig(model + ".net")
	nnet.CheckErr(err)

	rng := nnet.SetSeed(conf.RandSeed)
	data, err := nnet.LoadData(conf.DataSet)
	nnet.CheckErr(err)
	testData := nnet.NewDataset(data["test"], conf.TestBatch, 0, rng)

	net := nnet.New(conf, conf.TestBatch, data["test"].Shape())
	err = net.LoadWeights(model + ".wts")
	nnet.CheckErr(err)

	snapped := enas.BinarizeWeights(net)
	size := enas.ModelSize(net)
	if verbose {
		fmt.Printf("full-precision weights: %d\n", size.FPWeights)
		fmt.Printf("binary weights: %d (%.2f%% of weights are binary)\n",
			size.BinaryWeights, 100*size.BinaryRatio())
		fmt.Println("weights snapped to -1/+1:", snapped)
		for _, l := range net.ParamLayers() {
			W, B := l.Params()
			bits := 32
			if q, ok := l.(nnet.Quantized); ok {
				bits = q.Bits()
			}
			fmt.Printf("  %2d bit  weights %v  bias %v\n", bits, W.Dims(), B.Dims())
		}
	}
	fmt.Println(size)

	batches := testData.Batches
	if limit > 0 && limit < batches {
		batches = limit
	}
	net.SetTraining(false)
	correct, wrong := 0, 0
	classes := make([]int32, conf.TestBatch)
	for batch := 0; batch < batches; batch++ {
		x, y, _ := testData.GetBatch(batch)
		net.Predict(x, classes)
		for i, label := range y {
			if classes[i] == label {
				correct++
			} else {
				wrong++
			}
		}
	}
	fmt.Printf("Correct: %d, Wrong: %d\n", correct, wrong)
	fmt.Printf("Accuracy: %.2f%%\n", 100*float64(correct)/float64(correct+wrong))
}
