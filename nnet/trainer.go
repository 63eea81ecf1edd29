package nnet

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/Jopyth/LightNAS/num"
	"github.com/Jopyth/LightNAS/stats"
)

// Training statistics
type Stats struct {
	Epoch     int
	Values    []float64
	BestSince int
	Elapsed   time.Duration
}

func StatsHeaders(d map[string]Data) []string {
	h := []string{"loss"}
	for _, key := range DataTypes {
		if _, ok := d[key]; ok {
			h = append(h, key+" error")
			if key == "valid" {
				h = append(h, "valid avg")
			}
		}
	}
	return h
}

// Copy returns a deep copy of the stats entry.
func (s Stats) Copy() Stats {
	c := s
	c.Values = append([]float64{}, s.Values...)
	return c
}

func (s Stats) Format() []string {
	str := []string{fmt.Sprintf("%7.4f", s.Values[0])}
	for _, v := range s.Values[1:] {
		str = append(str, fmt.Sprintf("%6.2f%%", v*100))
	}
	return str
}

// Tester interface to evaluate the performance after each epoch, Test method
// returns true if training should stop.
type Tester interface {
	Test(net *Network, epoch int, loss float64, start time.Time) bool
}

// Tester which evaluates the loss and error for each of the data sets and
// updates the stats.
type TestBase struct {
	Net     *Network
	Data    map[string]*Dataset
	Pred    map[string][]int32
	Stats   []Stats
	Headers []string
	Samples int
}

// Create a new base class which implements the Tester interface.
func NewTestBase() *TestBase {
	return &TestBase{Stats: []Stats{}}
}

// Initialise the test datasets and the test network.
func (t *TestBase) Init(conf Config, data map[string]Data, rng *rand.Rand) *TestBase {
	t.Data = make(map[string]*Dataset)
	t.Headers = StatsHeaders(data)
	t.Samples = data["train"].Len()
	if conf.MaxSamples > 0 && conf.MaxSamples < t.Samples {
		t.Samples = conf.MaxSamples
	}
	t.Pred = nil
	for key, d := range data {
		t.Data[key] = NewDataset(d, conf.TestBatch, t.Samples, rng)
	}
	t.Net = New(conf, conf.TestBatch, data["train"].Shape())
	return t
}

// InitWith uses an existing network for testing rather than building one
// from the layer config, as needed when the layers were built
// programmatically.
func (t *TestBase) InitWith(net *Network, conf Config, data map[string]Data, rng *rand.Rand) *TestBase {
	t.Data = make(map[string]*Dataset)
	t.Headers = StatsHeaders(data)
	t.Samples = data["train"].Len()
	if conf.MaxSamples > 0 && conf.MaxSamples < t.Samples {
		t.Samples = conf.MaxSamples
	}
	for key, d := range data {
		t.Data[key] = NewDataset(d, conf.TestBatch, t.Samples, rng)
	}
	t.Net = net
	return t
}

// Generate the predicted results when test is next run.
func (t *TestBase) Predict() *TestBase {
	t.Pred = make(map[string][]int32)
	for key, dset := range t.Data {
		t.Pred[key] = make([]int32, dset.Samples)
	}
	return t
}

// Reset stats prior to new run
func (t *TestBase) Reset() {
	t.Stats = t.Stats[:0]
}

// Test performance of the network, called from the Train function on
// completion of each epoch.
func (t *TestBase) Test(net *Network, epoch int, loss float64, start time.Time) bool {
	if net != t.Net {
		net.CopyTo(t.Net)
	}
	s := Stats{Epoch: epoch, Values: []float64{loss}, BestSince: -1}
	for ix, key := range DataTypes {
		if dset, ok := t.Data[key]; ok {
			if dset.Samples < dset.Len() {
				dset.Shuffle()
			}
			var pred []int32
			if t.Pred != nil {
				pred = t.Pred[key]
			}
			errVal := t.Net.Error(dset, pred)
			s.Values = append(s.Values, errVal)
			if key == "valid" {
				// save average validation error
				avgVal := 0.0
				if epoch > 1 {
					avgVal = t.Stats[epoch-2].Values[ix+2]
				}
				avgVal = stats.EMA(avgVal).Add(errVal, 10)
				s.Values = append(s.Values, avgVal)
				// number of epochs since the average error last improved
				for ep := epoch - 1; ep >= 1; ep-- {
					prevErr := t.Stats[ep-1].Values[ix+2]
					if prevErr > avgVal {
						s.BestSince = epoch - ep - 1
						break
					}
				}
			}
		}
	}
	s.Elapsed = time.Since(start)
	t.Stats = append(t.Stats, s)
	return epoch >= net.MaxEpoch || loss <= net.MinLoss ||
		(net.StopAfter > 0 && s.BestSince >= net.StopAfter)
}

type testLogger struct {
	*TestBase
}

// Create a new tester which logs stats to stdout.
func NewTestLogger(conf Config, data map[string]Data, rng *rand.Rand) Tester {
	return testLogger{TestBase: NewTestBase().Init(conf, data, rng)}
}

func (t testLogger) Test(net *Network, epoch int, loss float64, start time.Time) bool {
	done := t.TestBase.Test(net, epoch, loss, start)
	s := t.Stats[len(t.Stats)-1]
	if done || net.LogEvery == 0 || epoch%net.LogEvery == 0 {
		msg := fmt.Sprintf("epoch %3d:", epoch)
		for i, val := range s.Format() {
			msg += fmt.Sprintf("  %s =%s", t.Headers[i], val)
		}
		if s.BestSince >= 0 {
			msg += fmt.Sprintf(" [%d]", s.BestSince)
		}
		fmt.Println(msg)
	}
	if done {
		fmt.Printf("run time: %s\n", s.Elapsed.Round(10*time.Millisecond))
	}
	return done
}

// Train the network on the given training set by updating the weights
func Train(net *Network, dset *Dataset, test Tester) {
	done := false
	start := time.Now()
	for epoch := 1; epoch <= net.MaxEpoch && !done; epoch++ {
		loss := TrainEpoch(net, dset)
		done = test.Test(net, epoch, loss, start)
	}
}

// Perform one training epoch on the dataset, returns the average loss.
func TrainEpoch(net *Network, dset *Dataset) float64 {
	net.SetTraining(true)
	if net.Shuffle {
		dset.Shuffle()
	}
	eta := float32(net.Eta)
	weightDecay := float32(net.Eta * net.Lambda / float64(dset.Samples))
	momentum := float32(net.Momentum)
	grad := num.NewArray(dset.BatchSize, dset.Classes())
	var loss float64
	for batch := 0; batch < dset.Batches; batch++ {
		x, _, yOneHot := dset.GetBatch(batch)
		yPred := net.Fprop(x)
		loss += float64(net.OutLayer().Loss(yOneHot, yPred))
		// difference at the output scaled by batch size
		num.Copy(grad, yPred)
		num.Axpy(-1, yOneHot, grad)
		num.Scale(1/float32(dset.BatchSize), grad)
		g := grad
		for i := len(net.Layers) - 1; i >= 0; i-- {
			g = net.Layers[i].Bprop(g)
		}
		for _, l := range net.ParamLayers() {
			l.UpdateParams(eta, weightDecay, momentum)
		}
		if net.DebugLevel >= 2 || (net.DebugLevel == 1 && batch == 0) {
			fmt.Printf("== train batch %d loss=%.4f ==\n", batch, loss)
		}
	}
	return loss / float64(dset.Samples)
}
