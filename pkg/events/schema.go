package events

import "github.com/invopop/jsonschema"

// Schema generates the JSON Schema for Event, served at GET /events/schema
// so consumers can validate the stream without hand-maintaining a second
// copy of the envelope shape.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(&Event{})
}
