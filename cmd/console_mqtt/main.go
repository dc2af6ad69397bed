package main

import (
	"errors"
	"flag"
	"io/fs"
	"log"

	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/app"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/config"
)

func main() {
	configPath := flag.String("config", "vitals_config.txt", "path to the node config file")
	attach := flag.Bool("attach", false, "act as the node's host and send commands typed on stdin")
	clientID := flag.String("client-id", "vitals-console-subscriber", "MQTT client id")
	flag.Parse()

	log.Println("starting vitals console (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Fatalf("failed to load config: %v", err)
		}
		log.Printf("config file %s not found, using defaults", *configPath)
	}
	cfg := config.Get()
	if cfg == nil {
		cfg = config.Default()
	}

	if err := app.RunConsoleMQTT(cfg, app.ConsoleOptions{ClientID: *clientID, Attach: *attach}); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
