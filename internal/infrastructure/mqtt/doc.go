// Package mqtt provides MQTT client connectivity for the KairosDB persistor.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// The persistor listens on a single bus address. Commands arrive on
// "<address>/command", replies leave on the sender's reply_to topic (or
// "<address>/reply/<request_id>"), and "<address>/status" carries a retained
// online/offline marker.
//
//	Command senders ↔ MQTT Broker ↔ Persistor ↔ KairosDB
//
// # Security Considerations
//
//   - TLS should be enabled for deployments outside a trusted network (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Persistor.Address)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.Command(cfg.Persistor.Address), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
package mqtt
