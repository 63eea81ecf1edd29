package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Jopyth/LightNAS/enas"
	"github.com/Jopyth/LightNAS/nnet"
)

func predict(net *nnet.Network, dset *nnet.Dataset) {
	x, y, _ := dset.GetBatch(0)
	classes := make([]int32, len(y))
	yPred := net.Predict(x, classes)
	fmt.Print("predict:", yPred.String())
	fmt.Println("classes:", classes)
	fmt.Println("labels: ", y)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: train [opts] <model>")
		os.Exit(1)
	}
	model := os.Args[len(os.Args)-1]
	fmt.Println("load model:", model)
	conf, err := nnet.LoadConfig(model + ".net")
	nnet.CheckErr(err)

	// override config settings from command line
	flag.Float64Var(&conf.Eta, "eta", conf.Eta, "learning rate")
	flag.Float64Var(&conf.Lambda, "lambda", conf.Lambda, "weight decay parameter")
	flag.Int64Var(&conf.RandSeed, "seed", conf.RandSeed, "random number seed")
	flag.IntVar(&conf.MaxEpoch, "epochs", conf.MaxEpoch, "max epochs")
	flag.IntVar(&conf.MaxSamples, "samples", conf.MaxSamples, "max samples")
	flag.IntVar(&conf.TrainBatch, "batch", conf.TrainBatch, "train batch size")
	flag.IntVar(&conf.TestBatch, "testbatch", conf.TestBatch, "test batch size")
	flag.IntVar(&conf.DebugLevel, "debug", conf.DebugLevel, "debug logging level")
	flag.Parse()

	rng := nnet.SetSeed(conf.RandSeed)

	// load training and test data
	data, err := nnet.LoadData(conf.DataSet)
	nnet.CheckErr(err)
	trainData := nnet.NewDataset(data["train"], conf.TrainBatch, conf.MaxSamples, rng)

	// initialise weights
	trainNet := nnet.New(conf, trainData.BatchSize, data["train"].Shape())
	fmt.Println(trainNet)
	trainNet.InitWeights(rng)
	if conf.DebugLevel >= 1 {
		fmt.Println("== Before ==")
		predict(trainNet, trainData)
	}

	// train the network
	tester := nnet.NewTestLogger(conf, data, rng)
	nnet.Train(trainNet, trainData, tester)

	if conf.DebugLevel >= 1 {
		fmt.Println("== After ==")
		predict(trainNet, trainData)
	}
	fmt.Println(enas.ModelSize(trainNet))
	err = trainNet.SaveWeights(model + ".wts")
	nnet.CheckErr(err)
	fmt.Println("saved weights to", model+".wts")
}
