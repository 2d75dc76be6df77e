// Package schema checks event payloads against the per-type JSON schemas and
// decodes them into the typed payload the registry names.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"path"

	"github.com/andreyxaxa/Reschedule-Engine/internal/entity"
	"github.com/andreyxaxa/Reschedule-Engine/pkg/types/errs"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const _baseURL = "https://reschedule-engine.local/schemas/"

//go:embed schemas/*.json
var schemaFS embed.FS

var schemaFiles = map[entity.EventType]string{
	entity.CalendarEventUpserted:      "calendar_event.json",
	entity.CalendarEventEdited:        "calendar_event.json",
	entity.CalendarEventDeleted:       "calendar_event_deleted.json",
	entity.CalendarEventRescheduled:   "calendar_event_rescheduled.json",
	entity.EmailReceived:              "email_received.json",
	entity.TaskUpserted:               "task.json",
	entity.TaskDeleted:                "record_deleted.json",
	entity.AccountUpserted:            "account.json",
	entity.AccountDeleted:             "record_deleted.json",
	entity.ProposalCreated:            "proposal_created.json",
	entity.ProposalApproved:           "proposal_decision.json",
	entity.ProposalRejected:           "proposal_decision.json",
	entity.ProposalAlternateSuggested: "proposal_decision.json",
	entity.ProposalExpired:            "proposal_expired.json",
	entity.ProposalApplied:            "proposal_applied.json",
	entity.ProposalDeleted:            "record_deleted.json",
}

type Validator struct {
	schemas map[entity.EventType]*jsonschema.Schema
}

// New compiles a schema for every registered event type.
func New() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	c.AssertFormat = true

	files, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("schema - New - schemaFS.ReadDir: %w", err)
	}

	for _, f := range files {
		b, err := schemaFS.ReadFile(path.Join("schemas", f.Name()))
		if err != nil {
			return nil, fmt.Errorf("schema - New - schemaFS.ReadFile: %w", err)
		}
		if err := c.AddResource(_baseURL+f.Name(), bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("schema - New - c.AddResource %s: %w", f.Name(), err)
		}
	}

	v := &Validator{schemas: make(map[entity.EventType]*jsonschema.Schema)}

	for _, t := range entity.EventTypes() {
		file, ok := schemaFiles[t]
		if !ok {
			return nil, fmt.Errorf("schema - New - no schema for %s", t)
		}

		compiled, err := c.Compile(_baseURL + file)
		if err != nil {
			return nil, fmt.Errorf("schema - New - c.Compile %s: %w", file, err)
		}
		v.schemas[t] = compiled
	}

	return v, nil
}

// Validate returns the typed payload for raw, or a *errs.ValidationError.
func (v *Validator) Validate(t entity.EventType, raw json.RawMessage) (entity.Payload, error) {
	spec, ok := entity.LookupEventType(t)
	if !ok {
		return nil, fmt.Errorf("%w: %q", errs.ErrUnknownEventType, t)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, errs.NewValidation("payload", "malformed JSON")
	}

	if err := v.schemas[t].Validate(doc); err != nil {
		return nil, errs.NewValidation("payload", err.Error())
	}

	payload := spec.NewPayload()
	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, errs.NewValidation("payload", err.Error())
	}

	if c, ok := payload.(entity.Checker); ok {
		if err := c.Check(); err != nil {
			return nil, err
		}
	}

	return payload, nil
}
