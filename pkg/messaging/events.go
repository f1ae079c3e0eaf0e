package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Batch lifecycle events
	EventBatchCreated  = "stock.batch.created"
	EventBatchDeleted  = "stock.batch.deleted"
	EventBatchRestored = "stock.batch.restored"

	// Ledger events
	EventLedgerAppended = "stock.ledger.appended"

	// Expiry events
	EventBatchExpiring = "stock.batch.expiring"
)

// Exchange names
const (
	ExchangeStockEvents = "stock.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// BatchCreatedEvent is published when a batch is received into stock
type BatchCreatedEvent struct {
	BatchID          string    `json:"batch_id"`
	BatchNumber      string    `json:"batch_number"`
	MedicineID       string    `json:"medicine_id"`
	SupplierID       string    `json:"supplier_id"`
	QuantityReceived int       `json:"quantity_received"`
	ExpiryDate       time.Time `json:"expiry_date"`
}

// BatchDeletedEvent is published when a batch is tombstoned
type BatchDeletedEvent struct {
	BatchID     string `json:"batch_id"`
	BatchNumber string `json:"batch_number"`
	PerformedBy string `json:"performed_by"`
}

// BatchRestoredEvent is published when a tombstoned batch is re-admitted
type BatchRestoredEvent struct {
	BatchID     string `json:"batch_id"`
	BatchNumber string `json:"batch_number"`
	PerformedBy string `json:"performed_by"`
}

// LedgerAppendedEvent is published after a ledger entry commits
type LedgerAppendedEvent struct {
	EntryID           string `json:"entry_id"`
	BatchID           string `json:"batch_id"`
	Kind              string `json:"kind"`
	QuantityChange    int    `json:"quantity_change"`
	ResultingQuantity int    `json:"resulting_quantity"`
	PerformedBy       string `json:"performed_by"`
}

// BatchExpiringEvent is published when a batch enters the expiring-soon window
type BatchExpiringEvent struct {
	BatchID     string    `json:"batch_id"`
	BatchNumber string    `json:"batch_number"`
	MedicineID  string    `json:"medicine_id"`
	ExpiryDate  time.Time `json:"expiry_date"`
	DaysLeft    int       `json:"days_left"`
}
