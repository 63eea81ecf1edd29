package enas

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/Jopyth/LightNAS/nnet"
)

// SearchConfig controls the architecture search loop.
type SearchConfig struct {
	Epochs          int   // search epochs after warmup
	WarmupEpochs    int   // epochs trained before rewards are tracked
	UpdateArchEvery int   // epochs between architecture resamples
	Space           []int // candidate bit widths per block
	LatencyTarget   float64
	LatencyPenalty  float64 // reward exponent on target/latency
}

func (c SearchConfig) withDefaults(net *Supernet) SearchConfig {
	if c.Epochs == 0 {
		c.Epochs = 1
	}
	if c.UpdateArchEvery == 0 {
		c.UpdateArchEvery = 1
	}
	if len(c.Space) == 0 {
		c.Space = []int{1, 32}
	}
	if c.LatencyTarget == 0 {
		c.LatencyTarget = net.AvgLatency(c.Space)
	}
	if c.LatencyPenalty == 0 {
		c.LatencyPenalty = 0.07
	}
	return c
}

// Trial records one evaluated architecture sample.
type Trial struct {
	Epoch   int
	Bits    []int
	Loss    float64
	Error   float64
	Latency float64
	Reward  float64
}

// Scheduler runs a random search over per block bit widths on a shared
// weight supernet: each epoch trains the current sample, evaluates it and
// keeps the architecture with the best latency weighted reward.
type Scheduler struct {
	Net       *Supernet
	Conf      SearchConfig
	History   []Trial
	Best      Trial
	rng       *rand.Rand
	postEpoch func(*Scheduler, int)
}

func NewScheduler(net *Supernet, conf SearchConfig, rng *rand.Rand) *Scheduler {
	return &Scheduler{Net: net, Conf: conf.withDefaults(net), rng: rng}
}

// OnEpoch registers a hook called after each epoch, e.g. to dump the sampled
// architecture graph.
func (s *Scheduler) OnEpoch(fn func(*Scheduler, int)) {
	s.postEpoch = fn
}

// reward scales accuracy by how far the sample undercuts the latency target.
func (s *Scheduler) reward(acc float64) float64 {
	return acc * math.Pow(s.Conf.LatencyTarget/s.Net.Latency(), s.Conf.LatencyPenalty)
}

// Step runs one search epoch: resample the bit widths if due, train the
// current sample for one epoch and evaluate it. net must wrap this
// scheduler's supernet layers.
func (s *Scheduler) Step(net *nnet.Network, train, test *nnet.Dataset, epoch int) Trial {
	if epoch == 1 || (epoch-1)%s.Conf.UpdateArchEvery == 0 {
		s.Net.Sample(s.rng, s.Conf.Space)
	}
	loss := nnet.TrainEpoch(net, train)
	errVal := net.Error(test, nil)
	t := Trial{
		Epoch:   epoch,
		Bits:    s.Net.Architecture(),
		Loss:    loss,
		Error:   errVal,
		Latency: s.Net.Latency(),
		Reward:  s.reward(1 - errVal),
	}
	s.History = append(s.History, t)
	if epoch > s.Conf.WarmupEpochs && t.Reward > s.Best.Reward {
		s.Best = t
	}
	return t
}

// Run trains the supernet for the configured number of epochs, resampling
// bit widths between epochs, and leaves the supernet set to the best found
// architecture.
func (s *Scheduler) Run(net *nnet.Network, train, test *nnet.Dataset) Trial {
	total := s.Conf.WarmupEpochs + s.Conf.Epochs
	fmt.Printf("search: %d blocks, avg latency %.2f, target %.2f\n",
		len(s.Net.Blocks), s.Net.AvgLatency(s.Conf.Space), s.Conf.LatencyTarget)
	for epoch := 1; epoch <= total; epoch++ {
		t := s.Step(net, train, test, epoch)
		tag := ""
		if epoch <= s.Conf.WarmupEpochs {
			tag = " [warmup]"
		}
		fmt.Printf("epoch %3d: loss=%7.4f error=%6.2f%% latency=%6.2f reward=%.4f%s\n",
			epoch, t.Loss, t.Error*100, t.Latency, t.Reward, tag)
		if s.postEpoch != nil {
			s.postEpoch(s, epoch)
		}
	}
	if s.Best.Bits != nil {
		s.Net.SetArchitecture(s.Best.Bits)
	}
	return s.Best
}
