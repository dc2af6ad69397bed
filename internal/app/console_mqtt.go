package app

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/config"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/telemetry"
)

// ConsoleOptions configures the host-side MQTT console.
type ConsoleOptions struct {
	ClientID string
	// Attach announces the console as the node's host, so the node starts
	// sending telemetry and accepts commands typed on stdin.
	Attach bool
	In     io.Reader
	Out    io.Writer
}

// RunConsoleMQTT prints the telemetry published by a node until interrupted.
func RunConsoleMQTT(cfg *config.Config, opts ConsoleOptions) error {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	enc, err := telemetry.NewEncoder(cfg.Encoding)
	if err != nil {
		return err
	}
	topic := consoleTopics(cfg)

	client := mqtt.NewClient(ConsoleClientOptions(cfg, opts))
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	for _, ch := range []telemetry.Channel{telemetry.Data, telemetry.Status} {
		token := client.Subscribe(topic(string(ch)), 0, func(_ mqtt.Client, msg mqtt.Message) {
			m, err := enc.Decode(msg.Payload())
			if err != nil {
				log.Printf("console: %s decode error: %v", ch, err)
				return
			}
			fmt.Fprintln(opts.Out, FormatFrame(ch, m))
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("console: subscribed to %s", topic(string(ch)))
	}

	token := client.Subscribe(topic("node"), 0, func(_ mqtt.Client, msg mqtt.Message) {
		fmt.Fprintf(opts.Out, "[NODE] %s\n", msg.Payload())
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}

	if opts.Attach {
		client.Publish(topic("presence"), 1, true, "online").Wait()
		log.Println("console: attached; type commands such as MODE:HR_SPO2")
		go func() {
			sc := bufio.NewScanner(opts.In)
			for sc.Scan() {
				line := strings.TrimSpace(sc.Text())
				if line == "" {
					continue
				}
				if t := client.Publish(topic("control"), 1, false, line); t.Wait() && t.Error() != nil {
					log.Printf("console: send %q: %v", line, t.Error())
				}
			}
		}()
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	if opts.Attach {
		client.Publish(topic("presence"), 1, true, "offline").Wait()
	}
	client.Disconnect(250)
	return nil
}

func consoleTopics(cfg *config.Config) func(string) string {
	prefix := strings.TrimRight(cfg.MQTTTopicPrefix, "/")
	return func(s string) string { return prefix + "/" + s }
}

// ConsoleClientOptions builds the console's broker options. An attached
// console leaves a retained "offline" Will on the presence topic, so a node
// resubscribing after its own reconnect always finds the host's current state.
func ConsoleClientOptions(cfg *config.Config, opts ConsoleOptions) *mqtt.ClientOptions {
	mopts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(opts.ClientID)
	if opts.Attach {
		mopts.SetWill(consoleTopics(cfg)("presence"), "offline", 1, true)
	}
	return mopts
}

// FormatFrame renders a decoded frame on one line with keys sorted.
func FormatFrame(ch telemetry.Channel, m map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%-6s]", strings.ToUpper(string(ch)))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		switch v := m[k].(type) {
		case float64:
			fmt.Fprintf(&b, " %s=%g", k, v)
		default:
			fmt.Fprintf(&b, " %s=%v", k, v)
		}
	}
	return b.String()
}
