package detector

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Status is the detector's operating state as reported by GET /api/status.
type Status struct {
	Running bool `json:"running" yaml:"running"`
	Silent  bool `json:"silent" yaml:"silent"`
	Alarm   bool `json:"alarm" yaml:"alarm"`
}

// Network is one entry of the detector's most recent scan.
// Fields are device-defined and kept in display order.
// ID is the identifier used when adding or removing the network as a target;
// it is empty when the entry carries none.
type Network struct {
	IsTarget bool     `json:"is_target" yaml:"is_target"`
	Fields   []string `json:"fields" yaml:"fields"`
	ID       string   `json:"id,omitempty" yaml:"id,omitempty"`
}

// Memory is the detector's heap usage as reported by GET /api/memory.
type Memory struct {
	Free      int64 `json:"free" yaml:"free"`
	Allocated int64 `json:"allocated" yaml:"allocated"`
}

type statusPayload struct {
	Running *bool `json:"running"`
	Silent  *bool `json:"silent"`
	Alarm   *bool `json:"alarm"`
}

func decodeStatus(data []byte) (Status, error) {
	var p statusPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Status{}, err
	}
	if p.Running == nil {
		return Status{}, errors.New(`missing "running"`)
	}
	if p.Alarm == nil {
		return Status{}, errors.New(`missing "alarm"`)
	}
	s := Status{Running: *p.Running, Alarm: *p.Alarm}
	// Firmware without silent mode omits the flag.
	if p.Silent != nil {
		s.Silent = *p.Silent
	}
	return s, nil
}

type networkObject struct {
	Target *bool             `json:"target"`
	ID     string            `json:"id"`
	Fields []json.RawMessage `json:"fields"`
}

// decodeNetworks accepts both the positional form [isTarget, [fields...]]
// and the object form {"target": bool, "id": string, "fields": [...]}.
// idField selects the identifier for positional entries.
func decodeNetworks(data []byte, idField int) ([]Network, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	nets := make([]Network, 0, len(raw))
	for i, entry := range raw {
		n, err := decodeNetwork(entry, idField)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

func decodeNetwork(entry json.RawMessage, idField int) (Network, error) {
	trimmed := bytes.TrimSpace(entry)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var obj networkObject
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return Network{}, err
		}
		if obj.Target == nil {
			return Network{}, errors.New(`missing "target"`)
		}
		fields, err := decodeFields(obj.Fields)
		if err != nil {
			return Network{}, err
		}
		n := Network{IsTarget: *obj.Target, Fields: fields, ID: obj.ID}
		if n.ID == "" {
			n.ID = fieldAt(fields, idField)
		}
		return n, nil
	}

	var pair []json.RawMessage
	if err := json.Unmarshal(trimmed, &pair); err != nil {
		return Network{}, err
	}
	if len(pair) != 2 {
		return Network{}, fmt.Errorf("want [isTarget, fields], got %d elements", len(pair))
	}

	var isTarget bool
	if isNull(pair[0]) {
		return Network{}, errors.New("isTarget: null")
	}
	if err := json.Unmarshal(pair[0], &isTarget); err != nil {
		return Network{}, fmt.Errorf("isTarget: %w", err)
	}
	var rawFields []json.RawMessage
	if err := json.Unmarshal(pair[1], &rawFields); err != nil {
		return Network{}, fmt.Errorf("fields: %w", err)
	}
	fields, err := decodeFields(rawFields)
	if err != nil {
		return Network{}, err
	}
	return Network{IsTarget: isTarget, Fields: fields, ID: fieldAt(fields, idField)}, nil
}

// decodeFields renders strings as-is and numbers as their literal text.
// The firmware reports channel and RSSI as integers.
func decodeFields(raw []json.RawMessage) ([]string, error) {
	fields := make([]string, 0, len(raw))
	for i, r := range raw {
		if isNull(r) {
			return nil, fmt.Errorf("field %d: null", i)
		}
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			fields = append(fields, s)
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(r))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		num, ok := v.(json.Number)
		if !ok {
			return nil, fmt.Errorf("field %d: unsupported type %T", i, v)
		}
		fields = append(fields, num.String())
	}
	return fields, nil
}

func isNull(r json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(r), []byte("null"))
}

func fieldAt(fields []string, idx int) string {
	if idx < 0 || idx >= len(fields) {
		return ""
	}
	return fields[idx]
}

func decodeTargets(data []byte) ([]string, error) {
	var targets []string
	if err := json.Unmarshal(data, &targets); err != nil {
		return nil, err
	}
	if targets == nil {
		targets = []string{}
	}
	return targets, nil
}

func decodeMemory(data []byte) (Memory, error) {
	var m struct {
		Free      *int64 `json:"free"`
		Allocated *int64 `json:"allocated"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return Memory{}, err
	}
	if m.Free == nil || m.Allocated == nil {
		return Memory{}, errors.New(`missing "free" or "allocated"`)
	}
	return Memory{Free: *m.Free, Allocated: *m.Allocated}, nil
}
