// Package mqtt provides MQTT client connectivity for cuebridge.
//
// The hub uses the broker in three directions: presentation hosts publish
// slide annotations and lifecycle events to it, the mqttout bridge and the
// MIDI relay output publish through it, and module health is published to
// retained status topics.
//
//	Presentation host → broker → cuebridge → broker → devices
//
// Topics live under a configurable prefix (default "cuebridge"):
//
//	{prefix}/system/status                 retained online/offline + LWT
//	{prefix}/host/{source}/annotation      slide text, JSON or raw
//	{prefix}/host/{source}/event/{name}    lifecycle signal
//	{prefix}/module/{type}/{name}/status   retained module health
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().AllHostAnnotations(), 1,
//	    func(topic string, payload []byte) error {
//	        return nil
//	    })
//
// Subscriptions are tracked and restored after a reconnect. Handler panics
// are recovered and logged.
package mqtt
