// Package mqtt provides the event bus client for the Loxone bridge.
//
// It wraps paho.mqtt.golang with connection management, automatic
// re-subscription on reconnect, Last Will and Testament for offline
// detection, and validated publish/subscribe helpers.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{}
//	client.Subscribe(topics.Command(), 1, handleCommand)
//	client.Publish(topics.Event(), payload, 1, false)
//
// # Ordering
//
// The client enables paho's in-order dispatch: messages on a single
// subscription reach their handler in broker delivery order. The event
// bridge relies on this for command ordering.
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
package mqtt
