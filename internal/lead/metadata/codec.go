// Package metadata decodes the lead's opaque metadata blob into a fully shaped
// record. Decoding is total: malformed input degrades field by field and never
// fails the caller.
package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"

	commonerrors "lead-wizard/internal/common/errors"
	"lead-wizard/internal/common/logger"
	"lead-wizard/internal/models"
)

// Policy controls how strictly household members are decoded.
type Policy struct {
	// StrictMembers reports dropped members as corrupt metadata instead of
	// dropping them silently.
	StrictMembers bool
}

type Codec struct {
	policy Policy
	logger logger.Logger
}

func NewCodec(policy Policy, log logger.Logger) *Codec {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Codec{policy: policy, logger: log}
}

var (
	lenient = NewCodec(Policy{}, nil)
	strict  = NewCodec(Policy{StrictMembers: true}, nil)
)

// Parse decodes raw with the lenient policy.
func Parse(raw interface{}) models.WizardMetadata {
	return lenient.Parse(raw)
}

// ParseStrict decodes raw and returns ErrCorruptMetadata alongside the
// best-effort record when any member had to be dropped.
func ParseStrict(raw interface{}) (models.WizardMetadata, error) {
	return strict.Decode(raw)
}

// Parse never fails. Under a strict policy the corruption error is logged.
func (c *Codec) Parse(raw interface{}) models.WizardMetadata {
	m, err := c.Decode(raw)
	if err != nil {
		c.logger.Warn("Lead metadata has invalid members", map[string]interface{}{
			"error": err,
		})
	}
	return m
}

// Decode accepts nil, string, []byte, json.RawMessage, a decoded JSON object,
// or a WizardMetadata value. Anything else yields the empty record.
func (c *Codec) Decode(raw interface{}) (models.WizardMetadata, error) {
	switch v := raw.(type) {
	case nil:
		return Empty(), nil
	case string:
		return c.decodeBytes([]byte(v))
	case []byte:
		return c.decodeBytes(v)
	case json.RawMessage:
		return c.decodeBytes(v)
	case map[string]interface{}:
		return c.normalize(v)
	case models.WizardMetadata:
		return c.roundTrip(v)
	case *models.WizardMetadata:
		if v == nil {
			return Empty(), nil
		}
		return c.roundTrip(*v)
	default:
		return Empty(), nil
	}
}

func (c *Codec) decodeBytes(b []byte) (models.WizardMetadata, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return Empty(), nil
	}
	decoded, err := decodeJSON(b)
	if err != nil {
		c.logger.Warn("Failed to parse lead metadata, using empty record", map[string]interface{}{
			"error": err,
		})
		return Empty(), nil
	}
	obj, ok := decoded.(map[string]interface{})
	if !ok {
		return Empty(), nil
	}
	return c.normalize(obj)
}

func (c *Codec) roundTrip(m models.WizardMetadata) (models.WizardMetadata, error) {
	b, err := Serialize(m)
	if err != nil {
		return Empty(), nil
	}
	return c.decodeBytes(b)
}

func (c *Codec) normalize(payload map[string]interface{}) (models.WizardMetadata, error) {
	m, dropped := normalize(payload)
	if dropped > 0 {
		c.logger.Debug("Dropped incomplete household members", map[string]interface{}{
			"dropped": dropped,
		})
		if c.policy.StrictMembers {
			return m, commonerrors.NewCorruptMetadataError(fmt.Sprintf("dropped %d household member(s)", dropped))
		}
	}
	return m, nil
}

// Normalize shapes an already-decoded JSON object with the lenient policy.
func Normalize(payload map[string]interface{}) models.WizardMetadata {
	m, _ := normalize(payload)
	return m
}

// Empty is the record every missing field falls back to.
func Empty() models.WizardMetadata {
	step := string(models.StepHouseholdType)
	return models.WizardMetadata{
		Version: models.MetadataVersion,
		Wizard:  models.WizardSection{Step: &step},
		Members: []models.HouseholdMember{},
		Consent: models.Consent{Status: models.ConsentNotRequested},
	}
}

// Serialize encodes m in the wire shape Parse reads back.
func Serialize(m models.WizardMetadata) ([]byte, error) {
	if m.Members == nil {
		m.Members = []models.HouseholdMember{}
	}
	if m.Consent.Status == "" {
		m.Consent.Status = models.ConsentNotRequested
	}
	return json.Marshal(m)
}

func decodeJSON(b []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
