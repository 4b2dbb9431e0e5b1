package main

import (
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dr0pdb/icecaneidb/pkg/common"
	"github.com/dr0pdb/icecaneidb/pkg/coordinator"
	"github.com/dr0pdb/icecaneidb/pkg/rpc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/reflection"
)

var (
	configPath = flag.String("config", "", "path of the yaml config file")
	port       = flag.String("port", "", "port of the grpc server")
	logLevel   = flag.String("loglevel", "", "the level of log")
)

func main() {
	flag.Parse()
	conf := common.NewDefaultServerConfig()

	if *configPath != "" {
		if err := conf.LoadFromFile(*configPath); err != nil {
			log.Fatalf("unable to load config: %v", err)
		}
	}
	if *port != "" {
		conf.Port = *port
	}
	if *logLevel != "" {
		conf.LogLevel = *logLevel
	}

	err := conf.Validate()
	if err != nil {
		log.Fatalf("%v", err)
	}

	level, _ := log.ParseLevel(conf.LogLevel)
	log.SetLevel(level)

	c := coordinator.NewCoordinator(conf.Name)
	grpcServer := rpc.NewGRPCServer(c)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", conf.ListenAddress())
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	if conf.MetricsAddress != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			log.WithFields(log.Fields{"address": conf.MetricsAddress}).Info("icecaneidb::main; serving metrics")
			if err := http.ListenAndServe(conf.MetricsAddress, mux); err != nil {
				log.WithFields(log.Fields{"err": err}).Error("icecaneidb::main; metrics server stopped")
			}
		}()
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("icecaneidb::main; shutting down")
		grpcServer.GracefulStop()
	}()

	log.WithFields(log.Fields{"name": conf.Name, "address": conf.ListenAddress()}).Info("icecaneidb::main; serving coordinator")
	if err := grpcServer.Serve(lis); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
