package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/Jopyth/LightNAS/nnet"
	"github.com/Jopyth/LightNAS/web"
	"github.com/gorilla/mux"
)

func main() {
	log.SetFlags(0)
	var port, depth, version int
	flag.IntVar(&port, "port", 8080, "web server port")
	flag.IntVar(&depth, "depth", 0, "run the bit width search on a resnet of this depth")
	flag.IntVar(&version, "version", 1, "resnet version for the search")
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Println("usage: web [opts] <model>")
		os.Exit(1)
	}
	model := flag.Arg(flag.NArg() - 1)

	net, err := web.NewNetwork(model, depth, version)
	nnet.CheckErr(err)

	t, err := web.NewTemplates()
	nnet.CheckErr(err)
	t.AddMenuItem(web.Link{Url: "/train", Name: "train"})
	if net.Super != nil {
		t.AddMenuItem(web.Link{Url: "/search", Name: "search"})
	}
	t.AddMenuItem(web.Link{Url: "/config", Name: "config"})

	trainPage := web.NewTrainPage(t.Clone(), net)
	searchPage := web.NewSearchPage(t.Clone(), net)
	configPage := web.NewConfigPage(t.Clone(), net)

	r := mux.NewRouter()
	r.Handle("/", http.RedirectHandler("/train", http.StatusFound))

	r.HandleFunc("/train", trainPage.Base())
	r.HandleFunc("/train/{cmd:(?:stats|start|stop|continue|tune)}", trainPage.Base())
	r.HandleFunc("/stats", trainPage.Stats())
	r.HandleFunc("/ws", trainPage.Websocket())

	r.HandleFunc("/search", searchPage.Base())

	r.HandleFunc("/config", configPage.Base())
	r.HandleFunc("/config/load", configPage.Load())
	r.HandleFunc("/config/save", configPage.Save()).Methods("POST")
	r.HandleFunc("/config/reset", configPage.Reset())

	auth := web.NewAuthMiddleware()
	fmt.Printf("serving web page at http://localhost:%d\n", port)
	err = http.ListenAndServe(fmt.Sprintf(":%d", port), auth.Middleware(r))
	nnet.CheckErr(err)
}
