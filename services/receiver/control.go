package receiver

import (
	"encoding/json"

	"nwrcode-go/bus"
	"nwrcode-go/drivers/si4707"
	"nwrcode-go/errcode"
	"nwrcode-go/types"
)

// Control verbs, the last token of nwr/control/<verb>.
const (
	VerbPowerUp     = "power_up"
	VerbPowerDown   = "power_down"
	VerbTune        = "tune"
	VerbGetProperty = "get_property"
	VerbSetProperty = "set_property"
	VerbRevision    = "revision"
	VerbRSQ         = "rsq"
	VerbIntStatus   = "int_status"
)

// handleControl turns a control request into a queued command. The reply
// is sent after the command has run.
func (s *Service) handleControl(msg *bus.Message) {
	verb, _ := msg.Topic[len(msg.Topic)-1].(string)
	if s.radio == nil {
		s.reply(msg, nil, &errcode.E{C: errcode.NotReady, Op: verb, Msg: "receiver not configured"})
		return
	}
	cmd, err := s.controlCommand(verb, msg.Payload)
	if err != nil {
		s.reply(msg, nil, err)
		return
	}
	s.enqueue(cmd, msg, nil)
}

func (s *Service) controlCommand(verb string, payload any) (si4707.Command, error) {
	switch verb {
	case VerbPowerUp:
		var req types.PowerUpRequest
		if err := decodeOptional(verb, payload, &req); err != nil {
			return nil, err
		}
		return s.powerUpCommand(req)
	case VerbPowerDown:
		return si4707.NewPowerDown(), nil
	case VerbTune:
		var req types.TuneRequest
		if err := decodeRequired(verb, payload, &req); err != nil {
			return nil, err
		}
		return si4707.NewTuneFrequency(req.Frequency)
	case VerbGetProperty:
		var req types.PropertyGet
		if err := decodeRequired(verb, payload, &req); err != nil {
			return nil, err
		}
		return si4707.NewGetProperty(req.Name)
	case VerbSetProperty:
		var req types.PropertySet
		if err := decodeRequired(verb, payload, &req); err != nil {
			return nil, err
		}
		return si4707.NewSetProperty(req.Name, req.Value)
	case VerbRevision:
		return si4707.NewGetRevision(), nil
	case VerbRSQ:
		return si4707.NewReceivedSignalQualityCheck(false), nil
	case VerbIntStatus:
		return si4707.NewGetIntStatus(), nil
	}
	return nil, &errcode.E{C: errcode.Unsupported, Op: verb, Msg: "unknown control verb"}
}

func (s *Service) reply(req *bus.Message, v any, err error) {
	if !req.CanReply() {
		return
	}
	r := types.Reply{OK: err == nil, Value: v}
	if err != nil {
		r.Error = err.Error()
		r.Code = errcode.Of(err)
	}
	s.conn.Reply(req, r, false)
}

func decodeRequired[T any](verb string, src any, dst *T) error {
	if src == nil {
		return &errcode.E{C: errcode.InvalidPayload, Op: verb, Msg: "payload required"}
	}
	return decodeOptional(verb, src, dst)
}

func decodeOptional[T any](verb string, src any, dst *T) error {
	if src == nil {
		return nil
	}
	if err := decodePayload(src, dst); err != nil {
		return errcode.Wrap(errcode.InvalidPayload, verb, err)
	}
	return nil
}

// decodePayload accepts a T, a *T, JSON bytes or text, or anything that
// marshals to the JSON form of T (maps from other services).
func decodePayload[T any](src any, dst *T) error {
	switch v := src.(type) {
	case T:
		*dst = v
		return nil
	case *T:
		if v != nil {
			*dst = *v
		}
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, dst)
	}
}
