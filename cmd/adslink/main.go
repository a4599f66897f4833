// adslink bridges symbol values from a Beckhoff TwinCAT PLC to MQTT.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"adslink/ads"
	"adslink/bridge"
	"adslink/config"
	"adslink/kafka"
	"adslink/logging"
	"adslink/mqtt"
	"adslink/valkey"
	"adslink/web"
)

var version = "1.2.0"

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("adslink %s\n", version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Default().Error("configuration error", "error", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Logging, version)
	log.Info("starting", "config", *configPath)

	// Broker connect is initiated first and proceeds in the background; the
	// paho client owns retry and reconnect from here on.
	mqttPub := mqtt.NewPublisher(cfg.MQTT.Connection, log)
	if err := mqttPub.Start(); err != nil {
		log.Error("mqtt start failed", "error", err)
		os.Exit(1)
	}

	sinks := []bridge.Sink{mqttPub}

	var kafkaProd *kafka.Producer
	if cfg.Kafka.Enabled {
		kafkaProd = kafka.NewProducer(cfg.Kafka, log)
		if err := kafkaProd.Start(); err != nil {
			log.Warn("kafka mirror unavailable, continuing without it", "error", err)
			kafkaProd = nil
		} else {
			sinks = append(sinks, kafkaProd)
		}
	}

	var valkeyPub *valkey.Publisher
	if cfg.Valkey.Enabled {
		valkeyPub = valkey.NewPublisher(cfg.Valkey, log)
		if err := valkeyPub.Start(); err != nil {
			log.Warn("valkey mirror unavailable, continuing without it", "error", err)
			valkeyPub = nil
		} else {
			sinks = append(sinks, valkeyPub)
		}
	}

	controller := ads.NewClient(ads.Config{
		Address: cfg.PLC.Connection.Address,
		NetID:   cfg.PLC.Connection.AmsNetID,
		AmsPort: cfg.PLC.Connection.AmsPort,
		Timeout: cfg.PLC.Connection.Timeout,
	})

	// The controller connect is awaited and fatal on failure: without a
	// live PLC session there is nothing to poll.
	b := bridge.New(cfg, controller, sinks, log)
	if err := b.Start(); err != nil {
		log.Error("startup aborted", "error", err)
		mqttPub.Stop()
		os.Exit(1)
	}
	log.Info("controller connected", "device", controller.Device())

	var webSrv *web.Server
	if cfg.Web.Enabled {
		webSrv = web.NewServer(cfg.Web, b, log)
		if err := webSrv.Start(); err != nil {
			log.Warn("status server failed to start", "error", err)
			webSrv = nil
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutting down", "signal", sig.String())

	b.Stop()
	controller.Close()

	if webSrv != nil {
		webSrv.Stop()
	}
	if valkeyPub != nil {
		valkeyPub.Stop()
	}
	if kafkaProd != nil {
		kafkaProd.Stop()
	}
	mqttPub.Stop()

	log.Info("shutdown complete")
}
