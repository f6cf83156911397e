package main

import (
	"context"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/mila-iqia/ptera-sub000/util"
)

// mqttLines subscribes to the topic and forwards message payloads.
func mqttLines(ctx context.Context, broker, topic string) (<-chan []byte, func(), error) {
	mqtt.ERROR = log.New(os.Stderr, "mqtt.error", 0)

	lines := make(chan []byte, 10)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID("ptrace")
	opts.SetKeepAlive(10 * time.Second)
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		log.Printf("MQTT connection lost: %s", err)
	}
	opts.DefaultPublishHandler = func(client mqtt.Client, msg mqtt.Message) {
		util.Logf("ptrace MQTT client heard %s %s", msg.Topic(), msg.Payload())
		select {
		case <-ctx.Done():
		case lines <- msg.Payload():
		}
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, nil, token.Error()
	}
	util.Logf("ptrace MQTT client connected to %s", broker)

	if t := client.Subscribe(topic, 0, nil); t.Wait() && t.Error() != nil {
		client.Disconnect(100)
		return nil, nil, t.Error()
	}
	util.Logf("ptrace MQTT client subscribed to %s", topic)

	return lines, func() { client.Disconnect(100) }, nil
}
