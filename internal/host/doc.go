// Package host receives presentation host events over MQTT and feeds them
// to the dispatch engine.
//
// Topics (prefix from mqtt.topic_prefix):
//
//	{prefix}/host/{source}/annotation    annotation text for the current slide
//	{prefix}/host/{source}/event/{name}  lifecycle signal ~name~
//
// An annotation payload is either raw text or a JSON object:
//
//	{"text": "note[60]", "slide": {"index": 3, "title": "...", "text": "...", "notes": "..."}}
//
// When "text" is absent the slide notes are processed instead. A payload
// carrying a slide object also raises ~slideupdate~ once the annotation has
// been dispatched. Event payloads are optional JSON objects; a "slide"
// member is decoded into the host context and the whole object is passed
// to handlers as Data.
package host
