package domain

import (
	"encoding/json"
	"strconv"
)

// TechnicalPropertiesSchemaVersion is the version of the key set this core
// reads and writes. Unknown keys round-trip untouched.
const TechnicalPropertiesSchemaVersion = 1

// TechnicalProperties is the typed view over a passport's free-form
// technical_properties JSON. Only the keys below are interpreted; everything
// else is preserved opaquely in Extra.
type TechnicalProperties struct {
	SchemaVersion       int
	Classification      WasteClassification
	ProcessabilityScore int
	RecyclableScore     int
	LastTransferDealID  string

	Extra map[string]json.RawMessage
}

const (
	propKeySchemaVersion  = "schema_version"
	propKeyClassification = "classification"
	propKeyProcessability = "processability_score"
	propKeyRecyclable     = "recyclable_score"
	propKeyLastTransfer   = "last_transfer_deal_id"
)

func (p TechnicalProperties) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(p.Extra)+5)
	for k, v := range p.Extra {
		out[k] = v
	}
	out[propKeySchemaVersion] = json.RawMessage(strconv.Itoa(p.SchemaVersion))
	out[propKeyProcessability] = json.RawMessage(strconv.Itoa(p.ProcessabilityScore))
	out[propKeyRecyclable] = json.RawMessage(strconv.Itoa(p.RecyclableScore))
	out[propKeyClassification] = json.RawMessage(strconv.Quote(string(p.Classification)))
	if p.LastTransferDealID != "" {
		out[propKeyLastTransfer] = json.RawMessage(strconv.Quote(p.LastTransferDealID))
	}
	return json.Marshal(out)
}

func (p *TechnicalProperties) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = TechnicalProperties{Extra: map[string]json.RawMessage{}}
	for k, v := range raw {
		switch k {
		case propKeySchemaVersion:
			if err := json.Unmarshal(v, &p.SchemaVersion); err != nil {
				return err
			}
		case propKeyClassification:
			if err := json.Unmarshal(v, &p.Classification); err != nil {
				return err
			}
		case propKeyProcessability:
			if err := json.Unmarshal(v, &p.ProcessabilityScore); err != nil {
				return err
			}
		case propKeyRecyclable:
			if err := json.Unmarshal(v, &p.RecyclableScore); err != nil {
				return err
			}
		case propKeyLastTransfer:
			if err := json.Unmarshal(v, &p.LastTransferDealID); err != nil {
				return err
			}
		default:
			p.Extra[k] = v
		}
	}
	if len(p.Extra) == 0 {
		p.Extra = nil
	}
	return nil
}
