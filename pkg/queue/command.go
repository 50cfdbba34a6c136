// Package queue decodes the durable per-pair command queue's wire format
// and drives a NATS JetStream pull consumer against it.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/axiomex/matchengine/pkg/app/core/model"
)

// CommandType tags a decoded queue message.
type CommandType string

const (
	CommandPlace  CommandType = "place"
	CommandCancel CommandType = "cancel"
)

// orderWire is the JSON shape of a place command's order object.
type orderWire struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	Side            string          `json:"side"`
	Volume          decimal.Decimal `json:"volume"`
	RemainingVolume decimal.Decimal `json:"remaining_volume"`
	Price           decimal.Decimal `json:"price"`
	BaseCurrency    string          `json:"base_currency"`
	QuoteCurrency   string          `json:"quote_currency"`
}

// commandWire is the JSON envelope both place and cancel share.
type commandWire struct {
	Type     CommandType `json:"type"`
	Order    *orderWire  `json:"order,omitempty"`
	OrderIDs []uuid.UUID `json:"order_ids,omitempty"`
}

// Command is the decoded, validated form the worker loop dispatches on.
type Command struct {
	Type     CommandType
	Order    *model.Order
	OrderIDs []uuid.UUID
}

// Decode parses one queue message body into a Command. now is the batch's
// timestamp; seq is assigned once, at intake,
// to break FIFO ties among orders admitted within the same created_at
// instant.
func Decode(body []byte, now time.Time, seq uint64) (*Command, error) {
	var w commandWire
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}

	switch w.Type {
	case CommandPlace:
		if w.Order == nil {
			return nil, fmt.Errorf("place command missing order")
		}
		side, err := parseSide(w.Order.Side)
		if err != nil {
			return nil, err
		}
		return &Command{
			Type: CommandPlace,
			Order: &model.Order{
				ID:              w.Order.ID,
				UserID:          w.Order.UserID,
				CreatedAt:       now,
				Side:            side,
				Base:            w.Order.BaseCurrency,
				Quote:           w.Order.QuoteCurrency,
				Volume:          w.Order.Volume,
				RemainingVolume: w.Order.RemainingVolume,
				Price:           w.Order.Price,
				Sequence:        seq,
			},
		}, nil
	case CommandCancel:
		if len(w.OrderIDs) == 0 {
			return nil, fmt.Errorf("cancel command missing order_ids")
		}
		if len(w.OrderIDs) > 100 {
			return nil, fmt.Errorf("cancel command exceeds batch limit of 100 ids")
		}
		return &Command{Type: CommandCancel, OrderIDs: w.OrderIDs}, nil
	default:
		return nil, fmt.Errorf("unknown command type %q", w.Type)
	}
}

func parseSide(s string) (model.Side, error) {
	switch s {
	case "buy":
		return model.SideBuy, nil
	case "sell":
		return model.SideSell, nil
	default:
		return 0, fmt.Errorf("invalid order side %q", s)
	}
}
