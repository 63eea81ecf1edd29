// Package web has a web based interface for network training and the bit
// width architecture search.
package web

import (
	"encoding/gob"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Jopyth/LightNAS/enas"
	"github.com/Jopyth/LightNAS/nnet"
	"github.com/gorilla/websocket"
)

var tuneOpts = []string{"Eta", "Lambda", "TrainBatch"}
var tuneOptHtml = []string{"&eta;", "&lambda;", "batch"}

// Network and associated training / test data and configuration
type Network struct {
	*NetworkData
	*nnet.Network
	Data      map[string]nnet.Data
	Super     *enas.Supernet
	sched     *enas.Scheduler
	test      *nnet.TestBase
	conn      *websocket.Conn
	trainData *nnet.Dataset
	rng       *rand.Rand
	testRng   *rand.Rand
	updated   bool
	running   bool
	stop      bool
	tuneMode  bool
	sync.Mutex
}

// Embedded structs used to persist state to file
type NetworkData struct {
	Model   string
	Depth   int
	Version int
	Conf    nnet.Config
	MaxRun  int
	Run     int
	Epoch   int
	Stats   []nnet.Stats
	Params  []nnet.LayerData
	Trials  []enas.Trial
	Best    enas.Trial
	History []HistoryData
	Tuners  []TuneParams
}

type HistoryData struct {
	Run   int
	Stats nnet.Stats
	Conf  nnet.Config
}

type TuneParams struct {
	Name   string
	Values []string
}

// Create a new network and load config given the model name. If depth is
// non zero then a ResNet supernet is built for the architecture search
// instead of taking the layers from the config.
func NewNetwork(model string, depth, version int) (*Network, error) {
	n := &Network{test: nnet.NewTestBase()}
	log.Println("load model:", model)
	var err error
	n.NetworkData, err = LoadNetwork(model, false)
	if err != nil {
		return nil, err
	}
	if depth > 0 {
		n.Depth, n.Version = depth, version
	}
	if err := n.Init(n.Conf); err != nil {
		return nil, err
	}
	if err := n.Import(); err != nil {
		return nil, err
	}
	return n, nil
}

// Initialise the network
func (n *Network) Init(conf nnet.Config) error {
	log.Printf("init network: dataSet=%s\n", conf.DataSet)
	var err error
	if n.Data, err = nnet.LoadData(conf.DataSet); err != nil {
		return err
	}
	n.rng = nnet.SetSeed(conf.RandSeed)
	n.testRng = nnet.SetSeed(conf.RandSeed)
	n.trainData = nnet.NewDataset(n.Data["train"], conf.TrainBatch, conf.MaxSamples, n.rng)
	if n.Depth > 0 {
		n.Super, err = enas.GetResNet(n.Version, n.Depth, enas.Options{
			Classes: n.trainData.Classes(), Stem: "thumbnail", GradCancel: conf.GradCancel,
		})
		if err != nil {
			return err
		}
		// the search shares one network between training and testing
		conf.TestBatch = conf.TrainBatch
		n.Network = n.Super.Network(conf, n.trainData.BatchSize, n.trainData.Shape())
		n.sched = enas.NewScheduler(n.Super, enas.SearchConfig{Epochs: conf.MaxEpoch}, n.rng)
		n.test.InitWith(n.Network, conf, n.Data, n.testRng)
	} else {
		n.Super, n.sched = nil, nil
		n.Network = nnet.New(conf, n.trainData.BatchSize, n.trainData.Shape())
		n.test.Init(conf, n.Data, n.testRng)
	}
	if n.DebugLevel >= 1 {
		fmt.Println(n.Network)
	}
	return nil
}

// Initialise for new training run
func (n *Network) Start(conf nnet.Config, lock bool) error {
	if lock {
		n.Lock()
		defer n.Unlock()
	}
	if err := n.Init(conf); err != nil {
		return err
	}
	n.test.Reset()
	log.Println("init weights")
	n.InitWeights(n.rng)
	n.Epoch = 0
	n.Trials = nil
	n.Best = enas.Trial{}
	n.updated = false
	return nil
}

// Perform training run
func (n *Network) Train(restart bool) error {
	log.Printf("train %s: restart=%v\n", n.Model, restart)
	runs := []nnet.Config{n.Conf}
	if n.tuneMode {
		runs = getRunConfig(n.Conf, n.Tuners)
	}
	n.MaxRun = len(runs)
	if restart {
		if n.Epoch != 0 || n.Run != 0 || n.updated {
			n.Run = 0
			if err := n.Start(runs[0], false); err != nil {
				return err
			}
		}
		n.Epoch = 1
	} else if n.Epoch > 0 {
		n.Epoch++
	}
	if n.Epoch == 0 || n.Epoch > n.MaxEpoch {
		return nil
	}
	n.running = true
	n.stop = false
	go func() {
		quit := false
		for n.Run < n.MaxRun && !quit {
			if n.Run > 0 {
				if err := n.Start(runs[n.Run], true); err != nil {
					log.Println(err)
					return
				}
				n.Epoch = 1
			}
			log.Printf("train run %d / %d epoch=%d\n", n.Run+1, len(runs), n.Epoch)
			epoch := n.Epoch
			done := false
			for !done && !quit {
				start := time.Now()
				var loss float64
				if n.Super != nil {
					trial := n.sched.Step(n.Network, n.trainData, n.test.Data["test"], epoch)
					loss = trial.Loss
				} else {
					loss = nnet.TrainEpoch(n.Network, n.trainData)
				}
				done = n.test.Test(n.Network, epoch, loss, start)
				epoch, quit = n.nextEpoch(epoch, done)
			}
			if n.Super != nil && n.sched.Best.Bits != nil {
				n.Super.SetArchitecture(n.sched.Best.Bits)
			}
			if !quit {
				n.Run++
			}
		}
		n.Lock()
		n.running = false
		n.stop = false
		n.Unlock()
		log.Println("train: end - quit =", quit)
	}()
	return nil
}

func (n *Network) nextEpoch(epoch int, done bool) (int, bool) {
	quit := false
	n.Lock()
	n.Epoch = epoch
	// check for interrupt
	if n.stop {
		n.stop = false
		n.running = false
		quit = true
	}
	if n.sched != nil {
		n.Trials = n.sched.History
		n.Best = n.sched.Best
	}
	// update history
	if done && !quit && len(n.test.Stats) > 0 {
		n.History = append(n.History, HistoryData{
			Run:   n.Run + 1,
			Stats: n.test.Stats[len(n.test.Stats)-1].Copy(),
			Conf:  n.Config,
		})
	}
	n.Unlock()
	// notify via websocket
	if n.conn != nil {
		msg := []byte(strconv.Itoa(n.Run+1) + ":" + strconv.Itoa(epoch))
		err := n.conn.WriteMessage(websocket.TextMessage, msg)
		if err != nil {
			log.Println("nextEpoch: error writing to websocket", err)
		}
	} else {
		log.Println("nextEpoch: websocket is not initialised")
	}
	// save state to disk
	n.Lock()
	n.Export()
	err := SaveNetwork(n.NetworkData, false)
	n.Unlock()
	if err != nil {
		log.Println("nextEpoch: error saving network:", err)
	}
	return epoch + 1, quit
}

// Export current state prior to saving to file
func (n *Network) Export() {
	n.Stats = n.test.Stats
	n.Params = n.Network.ExportParams()
}

// Import current state after loading from file
func (n *Network) Import() error {
	n.test.Stats = n.Stats
	if n.sched != nil {
		n.sched.History = n.Trials
		n.sched.Best = n.Best
		if n.Best.Bits != nil {
			if err := n.Super.SetArchitecture(n.Best.Bits); err != nil {
				return err
			}
		}
	}
	if n.Epoch == 0 {
		log.Println("init weights")
		n.InitWeights(n.rng)
	} else if len(n.Params) > 0 {
		log.Println("import weights")
		return n.Network.ImportParams(n.Params)
	}
	return nil
}

// Encode data in gob format and save to file under nnet.DataDir
func SaveNetwork(data *NetworkData, reset bool) error {
	model := data.Model
	filePath := path.Join(nnet.DataDir, model+".state")
	if reset {
		os.Remove(filePath)
		return nil
	}
	if f, err := os.Create(filePath); err != nil {
		return err
	} else {
		defer f.Close()
		return gob.NewEncoder(f).Encode(*data)
	}
}

// Read back gob encoded data file, if not found or reset is set then load
// the json config.
func LoadNetwork(model string, reset bool) (data *NetworkData, err error) {
	data = &NetworkData{
		Model:   model,
		MaxRun:  1,
		Stats:   []nnet.Stats{},
		History: []HistoryData{},
	}
	if !reset {
		if err = loadGob(model+".state", data); err != nil {
			reset = true
		}
	}
	if reset {
		data.Conf, err = nnet.LoadConfig(model + ".net")
	}
	if data.Tuners == nil {
		for _, opt := range tuneOpts {
			data.Tuners = append(data.Tuners, TuneParams{
				Name:   opt,
				Values: []string{fmt.Sprint(data.Conf.Get(opt))},
			})
		}
	}
	return data, err
}

func loadGob(name string, data *NetworkData) error {
	filePath := path.Join(nnet.DataDir, name)
	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()
	log.Println("loading network state from", name)
	return gob.NewDecoder(f).Decode(data)
}

// For hyperparameter tuning, get config per run
func getRunConfig(conf nnet.Config, params []TuneParams) []nnet.Config {
	for _, p := range params {
		conf = setConfig(conf, p.Name, p.Values[0])
	}
	logConfig(conf)
	list := permute(conf, params, len(params)-1, []nnet.Config{conf})
	runs := conf.TrainRuns
	if runs < 1 {
		runs = 1
	}
	log.Printf("getRunConfig: runs=%d cases=%d\n", runs, len(list))
	res := []nnet.Config{}
	for run := 0; run < runs; run++ {
		res = append(res, list...)
	}
	return res
}

func permute(conf nnet.Config, params []TuneParams, n int, list []nnet.Config) []nnet.Config {
	if n < 0 {
		return list
	}
	for i, val := range params[n].Values {
		if i > 0 {
			conf = setConfig(conf, params[n].Name, val)
			logConfig(conf)
			list = append(list, conf)
		}
		list = permute(conf, params, n-1, list)
	}
	return list
}

func setConfig(c nnet.Config, name string, val string) nnet.Config {
	var err error
	c, err = c.SetString(name, val)
	if err != nil {
		panic(err)
	}
	return c
}

func logConfig(c nnet.Config) {
	var s string
	for _, name := range tuneOpts {
		s += fmt.Sprintf("%s=%v ", name, c.Get(name))
	}
	log.Println("getRunConfig:", s)
}

func tuneParams(h HistoryData) string {
	plist := make([]string, len(tuneOpts))
	for i, p := range tuneOpts {
		plist[i] = fmt.Sprintf("%s=%v", tuneOptHtml[i], h.Conf.Get(p))
	}
	return strings.Join(plist, " ")
}
