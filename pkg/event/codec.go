package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrMissingBody        = errors.New("missing command body")
)

type envelope struct {
	MessageType MessageType `json:"messageType"`
	Header
	Order      *OrderRequest      `json:"order,omitempty"`
	Cancel     *CancelRequest     `json:"cancel,omitempty"`
	Replace    *ReplaceRequest    `json:"replace,omitempty"`
	MassCancel *MassCancelRequest `json:"massCancel,omitempty"`
}

// DecodeCommand parses one command envelope.
func DecodeCommand(data []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}

	switch env.MessageType {
	case MessageTypeNewOrder:
		if env.Order == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingBody, env.MessageType)
		}
		return &NewOrder{Header: env.Header, Order: *env.Order}, nil
	case MessageTypeCancelOrder:
		if env.Cancel == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingBody, env.MessageType)
		}
		return &CancelOrder{Header: env.Header, Cancel: *env.Cancel}, nil
	case MessageTypeReplaceOrder:
		if env.Replace == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingBody, env.MessageType)
		}
		return &ReplaceOrder{Header: env.Header, Replace: *env.Replace}, nil
	case MessageTypeMassCancel:
		if env.MassCancel == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingBody, env.MessageType)
		}
		return &MassCancel{Header: env.Header, MassCancel: *env.MassCancel}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, env.MessageType)
}

func EncodeCommand(cmd Command) ([]byte, error) {
	env := envelope{MessageType: cmd.Type(), Header: cmd.Meta()}
	switch c := cmd.(type) {
	case *NewOrder:
		env.Order = &c.Order
	case *CancelOrder:
		env.Cancel = &c.Cancel
	case *ReplaceOrder:
		env.Replace = &c.Replace
	case *MassCancel:
		env.MassCancel = &c.MassCancel
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownMessageType, cmd)
	}
	return json.Marshal(env)
}

// PartitionKey routes every command of an instrument to the same partition.
// Mass cancels over all instruments share the ScopeAll key.
func PartitionKey(cmd Command) string {
	switch c := cmd.(type) {
	case *NewOrder:
		return c.Order.InstrumentID
	case *CancelOrder:
		return c.Cancel.InstrumentID
	case *ReplaceOrder:
		return c.Replace.InstrumentID
	case *MassCancel:
		if c.MassCancel.All() {
			return ScopeAll
		}
		return c.MassCancel.Scope
	}
	return ""
}
