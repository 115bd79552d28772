// Package infra holds the adapters behind the core interfaces: the Paho MQTT
// client, metrics sinks, the structured logger and the warehouse task feed.
package infra
