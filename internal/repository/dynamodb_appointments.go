package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"appointment-bot/internal/domain"
)

const (
	appointmentsPK  = "APPOINTMENTS"
	skCounter       = "COUNTER#"
	skPrefixAppt    = "APPT#"
	apptSKDigitsFmt = "%s%010d"
)

// AppointmentTable stores appointments as items under one partition, next to a
// counter item holding the last issued id. The counter update and the new item
// are written in one transaction conditioned on the counter value that was read.
type AppointmentTable struct {
	api         dynamodbAPI
	tableName   string
	maxAttempts int
}

func NewAppointmentTable(api dynamodbAPI, tableName string) (*AppointmentTable, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &AppointmentTable{api: api, tableName: tableName, maxAttempts: defaultMaxAttempts}, nil
}

// apptSK keeps sort order equal to numeric id order.
func apptSK(id int) string {
	return fmt.Sprintf(apptSKDigitsFmt, skPrefixAppt, id)
}

func (t *AppointmentTable) Append(ctx context.Context, a domain.Appointment) (string, error) {
	for attempt := 0; attempt < t.maxAttempts; attempt++ {
		seq, err := t.lastIssued(ctx)
		if err != nil {
			return "", fmt.Errorf("repository: Append: %w", err)
		}
		next := seq + 1
		err = t.commit(ctx, seq, next, a)
		if err == nil {
			return strconv.Itoa(next), nil
		}
		var canceled *types.TransactionCanceledException
		if !errors.As(err, &canceled) {
			return "", fmt.Errorf("repository: Append: %w", err)
		}
	}
	return "", fmt.Errorf("repository: Append: %w", ErrConflict)
}

func (t *AppointmentTable) lastIssued(ctx context.Context) (int, error) {
	out, err := t.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(t.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: appointmentsPK},
			"SK": &types.AttributeValueMemberS{Value: skCounter},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("get counter: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return 0, nil
	}
	seq, err := intAttr(out.Item, "seq")
	if err != nil {
		return 0, fmt.Errorf("decode counter: %w", err)
	}
	return seq, nil
}

func (t *AppointmentTable) commit(ctx context.Context, seq, next int, a domain.Appointment) error {
	counter := &types.Put{
		TableName: aws.String(t.tableName),
		Item: map[string]types.AttributeValue{
			"PK":  &types.AttributeValueMemberS{Value: appointmentsPK},
			"SK":  &types.AttributeValueMemberS{Value: skCounter},
			"seq": &types.AttributeValueMemberN{Value: strconv.Itoa(next)},
		},
	}
	if seq == 0 {
		counter.ConditionExpression = aws.String("attribute_not_exists(PK)")
	} else {
		counter.ConditionExpression = aws.String("seq = :cur")
		counter.ExpressionAttributeValues = map[string]types.AttributeValue{
			":cur": &types.AttributeValueMemberN{Value: strconv.Itoa(seq)},
		}
	}

	_, err := t.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: counter},
			{
				Put: &types.Put{
					TableName:           aws.String(t.tableName),
					Item:                appointmentItem(next, a),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
		},
	})
	return err
}

// LoadAll queries every appointment item in id order.
func (t *AppointmentTable) LoadAll(ctx context.Context) ([]domain.Appointment, error) {
	var (
		out      []domain.Appointment
		startKey map[string]types.AttributeValue
	)
	for {
		page, err := t.api.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(t.tableName),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":     &types.AttributeValueMemberS{Value: appointmentsPK},
				":prefix": &types.AttributeValueMemberS{Value: skPrefixAppt},
			},
			ConsistentRead:    aws.Bool(true),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("repository: LoadAll query: %w", err)
		}
		for _, item := range page.Items {
			a, err := itemToAppointment(item)
			if err != nil {
				return nil, fmt.Errorf("repository: LoadAll unmarshal: %w", err)
			}
			out = append(out, a)
		}
		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		startKey = page.LastEvaluatedKey
	}
	if out == nil {
		out = []domain.Appointment{}
	}
	return out, nil
}

func appointmentItem(id int, a domain.Appointment) map[string]types.AttributeValue {
	team := make([]types.AttributeValue, 0, len(a.Team))
	for _, name := range a.Team {
		team = append(team, &types.AttributeValueMemberS{Value: name})
	}
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: appointmentsPK},
		"SK":             &types.AttributeValueMemberS{Value: apptSK(id)},
		"id":             &types.AttributeValueMemberS{Value: strconv.Itoa(id)},
		"client_name":    &types.AttributeValueMemberS{Value: a.ClientName},
		"description":    &types.AttributeValueMemberS{Value: a.Description},
		"start_datetime": &types.AttributeValueMemberS{Value: a.StartDateTime},
		"end_datetime":   &types.AttributeValueMemberS{Value: a.EndDateTime},
		"location":       &types.AttributeValueMemberS{Value: a.Location},
		"team":           &types.AttributeValueMemberL{Value: team},
		"createdAt":      &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
	}
}

func itemToAppointment(item map[string]types.AttributeValue) (domain.Appointment, error) {
	var (
		a   domain.Appointment
		err error
	)
	fields := []struct {
		key string
		dst *string
	}{
		{"id", &a.ID},
		{"client_name", &a.ClientName},
		{"description", &a.Description},
		{"start_datetime", &a.StartDateTime},
		{"end_datetime", &a.EndDateTime},
		{"location", &a.Location},
	}
	for _, f := range fields {
		if *f.dst, err = strAttr(item, f.key); err != nil {
			return domain.Appointment{}, err
		}
	}
	if a.Team, err = listAttr(item, "team"); err != nil {
		return domain.Appointment{}, err
	}
	return a, nil
}
