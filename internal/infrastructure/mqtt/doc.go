// Package mqtt connects sqlsessiond to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing session lifecycle events (Notifier)
//   - Receiving record-cache invalidations from other writers
//   - Last Will and Testament (LWT) for offline detection
//
// # Topics
//
// Everything lives under a configurable prefix (default "sqlsession"):
//
//	{prefix}/system/status                       retained online/offline
//	{prefix}/session/{id}/event                  lifecycle events (JSON)
//	{prefix}/session/{id}/schema                 retained schema version
//	{prefix}/session/{id}/cache/invalidate       {"keys": [...]} from other writers
//
// # Security Considerations
//
//   - Enable TLS (mqtt.broker.tls) for anything beyond a local broker
//   - Event payloads never carry SQL text or data, only versions and errors
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	notifier := mqtt.NewNotifier(client, client.Topics(), client.QoS(), logger)
//	defer notifier.Close()
//
//	s, err := session.Open(ctx, session.Options{Path: path, Observers: []session.Observer{notifier}})
package mqtt
