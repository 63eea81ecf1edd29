package main

import (
	"flag"
	"fmt"

	"github.com/Jopyth/LightNAS/nnet"
)

// Generates the LeNet style MNIST model config, either full precision or
// with the second conv, the dense layer and their input activations
// binarized. The first and last layers always stay full precision.
func main() {
	var bits int
	flag.IntVar(&bits, "bits", 32, "number of bits for binarization")
	flag.Parse()
	if bits != 1 && bits != 32 {
		nnet.CheckErr(fmt.Errorf("quantization to %d bits not supported", bits))
	}

	conf := nnet.Config{
		DataSet:    "mnist",
		Eta:        0.01,
		Momentum:   0.9,
		Bits:       bits,
		GradCancel: 1,
		MaxEpoch:   10,
		TrainBatch: 100,
		TestBatch:  100,
		LogEvery:   1,
		Shuffle:    true,
	}
	name := "mnist_lenet32"
	if bits == 1 {
		name = "mnist_lenet"
		conf = conf.AddLayers(
			nnet.QConv{Nfeats: 64, Size: 5, Bits: 32},
			nnet.Activation{Atype: "tanh"},
			nnet.Pool{Size: 2},
			nnet.BatchNorm{},
			nnet.QActivation{Bits: 1, GradCancel: 1},
			nnet.QConv{Nfeats: 64, Size: 5, Bits: 1},
			nnet.BatchNorm{},
			nnet.Pool{Size: 2},
			nnet.Flatten{},
			nnet.QActivation{Bits: 1, GradCancel: 1},
			nnet.Linear{Nout: 1000, Bits: 1},
			nnet.BatchNorm{},
			nnet.Activation{Atype: "tanh"},
			nnet.Linear{Nout: 10},
			nnet.LogRegression{},
		)
	} else {
		conf = conf.AddLayers(
			nnet.QConv{Nfeats: 64, Size: 5, Bits: 32},
			nnet.BatchNorm{},
			nnet.Activation{Atype: "tanh"},
			nnet.Pool{Size: 2},
			nnet.QConv{Nfeats: 64, Size: 5, Bits: 32},
			nnet.BatchNorm{},
			nnet.Activation{Atype: "tanh"},
			nnet.Pool{Size: 2},
			nnet.Flatten{},
			nnet.Linear{Nout: 1000},
			nnet.BatchNorm{},
			nnet.Activation{Atype: "tanh"},
			nnet.Linear{Nout: 10},
			nnet.LogRegression{},
		)
	}
	fmt.Println(conf)
	err := conf.Save(name + ".net")
	nnet.CheckErr(err)
}
