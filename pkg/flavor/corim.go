package flavor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// ReferenceValue is a single expected measurement from an imported baseline
// bundle. Digest is hex-encoded.
type ReferenceValue struct {
	Index       int    `json:"index"`
	Description string `json:"description,omitempty"`
	Algorithm   string `json:"algorithm"`
	Digest      string `json:"digest"`
}

// Bundle is a parsed CoRIM-style baseline bundle as published by vendor
// reference-integrity services. One bundle yields one flavor.
type Bundle struct {
	ID              string           `json:"id"`
	Category        string           `json:"category,omitempty"`
	Label           string           `json:"label,omitempty"`
	ReferenceValues []ReferenceValue `json:"reference_values"`
}

// ImportBase64 decodes a base64-encoded CBOR bundle and converts it to a
// flavor. Vendor RIM services deliver bundles base64-wrapped in JSON.
func ImportBase64(data string) (*Flavor, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 bundle: %w", err)
	}
	return ImportBundle(raw)
}

// ImportBundle parses raw CBOR bundle bytes and converts the embedded
// reference values into a flavor. The bundle map may use either the integer
// keys of the CoRIM CDDL or plain string keys.
func ImportBundle(data []byte) (*Flavor, error) {
	b, err := parseBundle(data)
	if err != nil {
		return nil, err
	}
	if len(b.ReferenceValues) == 0 {
		return nil, fmt.Errorf("bundle %q carries no reference values", b.ID)
	}

	category := CategoryPlatform
	if b.Category != "" {
		category, err = ParseCategory(b.Category)
		if err != nil {
			return nil, fmt.Errorf("bundle %q: %w", b.ID, err)
		}
	}

	label := b.Label
	if label == "" {
		label = b.ID
	}

	content, err := json.Marshal(map[string]any{
		"source":           "corim",
		"bundle_id":        b.ID,
		"reference_values": b.ReferenceValues,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode flavor content: %w", err)
	}

	return &Flavor{
		ID:        "fl_" + uuid.New().String()[:8],
		Category:  category,
		Label:     label,
		Content:   content,
		CreatedAt: time.Now(),
	}, nil
}

func parseBundle(data []byte) (*Bundle, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty bundle")
	}

	var raw map[any]any
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse bundle CBOR: %w", err)
	}

	b := &Bundle{}
	for key, value := range raw {
		switch k := key.(type) {
		case uint64:
			// Integer keys per the CoRIM CDDL: 0 = id, 1 = tags.
			switch k {
			case 0:
				if id, ok := value.(string); ok {
					b.ID = id
				}
			case 1:
				vals, err := parseReferenceValues(value)
				if err != nil {
					return nil, err
				}
				b.ReferenceValues = append(b.ReferenceValues, vals...)
			}
		case string:
			switch k {
			case "id":
				if id, ok := value.(string); ok {
					b.ID = id
				}
			case "category":
				if c, ok := value.(string); ok {
					b.Category = c
				}
			case "label":
				if l, ok := value.(string); ok {
					b.Label = l
				}
			case "reference_values", "referenceValues":
				vals, err := parseReferenceValues(value)
				if err != nil {
					return nil, err
				}
				b.ReferenceValues = append(b.ReferenceValues, vals...)
			}
		}
	}

	if b.ID == "" {
		return nil, fmt.Errorf("bundle has no id")
	}
	return b, nil
}

func parseReferenceValues(value any) ([]ReferenceValue, error) {
	list, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("reference values are not a list")
	}

	var out []ReferenceValue
	for _, item := range list {
		entry, ok := item.(map[any]any)
		if !ok {
			continue
		}
		rv := ReferenceValue{}
		for k, v := range entry {
			name, ok := k.(string)
			if !ok {
				continue
			}
			switch name {
			case "index":
				switch n := v.(type) {
				case uint64:
					rv.Index = int(n)
				case int64:
					rv.Index = int(n)
				}
			case "description":
				rv.Description, _ = v.(string)
			case "algorithm":
				rv.Algorithm, _ = v.(string)
			case "digest":
				rv.Digest, _ = v.(string)
			}
		}
		if rv.Digest != "" {
			out = append(out, rv)
		}
	}
	return out, nil
}
