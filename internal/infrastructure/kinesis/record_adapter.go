// Package kinesis turns DynamoDB change records of the orders table,
// delivered through Kinesis Data Streams, into order status events.
package kinesis

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/example/vexokart/internal/domain/order"
)

// ConvertFromKinesisRecord converts a Kinesis record (DynamoDB Streams format)
// to a status change. It returns nil for records that change no status.
func ConvertFromKinesisRecord(record events.KinesisEventRecord) (*order.OrderStatusChanged, error) {
	var dynamoDBRecord events.DynamoDBEventRecord
	if err := json.Unmarshal(record.Kinesis.Data, &dynamoDBRecord); err != nil {
		return nil, fmt.Errorf("failed to unmarshal DynamoDB record: %w", err)
	}
	if dynamoDBRecord.EventID == "" {
		dynamoDBRecord.EventID = record.EventID
	}
	return ConvertFromDynamoDBStreamRecord(dynamoDBRecord)
}

// ConvertFromDynamoDBStreamRecord converts a DynamoDB Stream record. MODIFY
// records need the stream to carry old images (NEW_AND_OLD_IMAGES).
func ConvertFromDynamoDBStreamRecord(record events.DynamoDBEventRecord) (*order.OrderStatusChanged, error) {
	var old order.Status
	switch record.EventName {
	case "INSERT":
	case "MODIFY":
		old = order.Status(stringAttr(record.Change.OldImage, "status"))
	default:
		return nil, nil
	}

	o, err := convertDynamoDBImage(record.Change.NewImage)
	if err != nil {
		return nil, err
	}
	if record.EventName == "MODIFY" && old == o.Status {
		return nil, nil
	}

	return &order.OrderStatusChanged{
		EventID:   record.EventID,
		Type:      order.EventOrderStatusChanged,
		OrderID:   o.ID,
		OldStatus: old,
		NewStatus: o.Status,
		ChangedAt: o.UpdatedAt,
		Order:     o,
	}, nil
}

// convertDynamoDBImage decodes the order document an item carries.
func convertDynamoDBImage(image map[string]events.DynamoDBAttributeValue) (*order.Order, error) {
	if image == nil {
		return nil, fmt.Errorf("DynamoDB image is nil")
	}

	data := stringAttr(image, "data")
	if data == "" {
		return nil, fmt.Errorf("DynamoDB image has no data attribute")
	}
	var o order.Order
	if err := json.Unmarshal([]byte(data), &o); err != nil {
		return nil, fmt.Errorf("failed to decode order: %w", err)
	}

	if v, ok := image["version"]; ok && v.DataType() == events.DataTypeNumber {
		version, err := v.Integer()
		if err != nil {
			return nil, fmt.Errorf("failed to parse version: %w", err)
		}
		o.Version = int(version)
	}

	if o.ID == "" || !o.Status.Valid() {
		return nil, fmt.Errorf("missing required fields: id=%s, status=%s", o.ID, o.Status)
	}
	return &o, nil
}

// stringAttr reads a string attribute; the accessors on
// DynamoDBAttributeValue panic on a type mismatch.
func stringAttr(image map[string]events.DynamoDBAttributeValue, name string) string {
	v, ok := image[name]
	if !ok || v.DataType() != events.DataTypeString {
		return ""
	}
	return v.String()
}
