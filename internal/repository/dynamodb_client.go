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
	"github.com/google/uuid"

	"jarvis-webhook/internal/domain"
)

const (
	skPrefixMsg   = "MSG#"
	skPrefixPhoto = "PHOTO#"
	skPrefixSched = "SCHED#"
	ttlDuration   = 30 * 24 * time.Hour // chat history only

	// localStamp sorts lexically and keeps the user's calendar day as a prefix.
	localStamp = "2006-01-02T15:04:05.000000"
	dateLayout = "2006-01-02"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client stores chat history, photos and schedules in a single table keyed
// by user.
type Client struct {
	api       dynamodbAPI
	tableName string
	loc       *time.Location
	now       func() time.Time
}

type Option func(*Client)

// WithLocation sets the zone used to bucket photos by calendar day.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.loc = loc
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	c := &Client{api: api, tableName: tableName, loc: time.UTC, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func userPK(userID string) string {
	return "USER#" + userID
}

// msgSK keeps turns with identical timestamps distinct.
func msgSK(ts time.Time) string {
	return skPrefixMsg + ts.UTC().Format(time.RFC3339Nano) + "#" + shortID()
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func (c *Client) ttlValue() int64 {
	return c.now().Add(ttlDuration).Unix()
}

// GetHistory returns up to limit of the user's most recent turns in
// chronological order.
func (c *Client) GetHistory(ctx context.Context, userID string, limit int) ([]domain.ConversationTurn, error) {
	if limit <= 0 {
		return nil, nil
	}
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: userPK(userID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		// Read newest first so LIMIT favors the most recent context.
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: GetHistory query: %w", err)
	}

	turns := make([]domain.ConversationTurn, 0, len(out.Items))
	for _, item := range out.Items {
		turn, err := itemToTurn(item)
		if err != nil {
			return nil, fmt.Errorf("repository: GetHistory unmarshal: %w", err)
		}
		turns = append(turns, turn)
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// SaveTurns writes one exchange atomically.
func (c *Client) SaveTurns(ctx context.Context, userID string, turns ...domain.ConversationTurn) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("repository: SaveTurns: user id is required")
	}
	if len(turns) == 0 {
		return nil
	}

	ttl := c.ttlValue()
	items := make([]types.TransactWriteItem, 0, len(turns))
	for _, turn := range turns {
		if !turn.Role.Valid() {
			return fmt.Errorf("repository: SaveTurns: invalid role %q", turn.Role)
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(c.tableName),
				Item:                turnItem(userID, turn, ttl),
				ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
			},
		})
	}

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		return fmt.Errorf("repository: SaveTurns: %w", err)
	}
	return nil
}

// PutPhoto stores an uploaded photo. A zero timestamp means now.
func (c *Client) PutPhoto(ctx context.Context, photo domain.PhotoRecord) error {
	if strings.TrimSpace(photo.UserID) == "" || strings.TrimSpace(photo.PhotoURL) == "" {
		return errors.New("repository: PutPhoto: user id and photo url are required")
	}
	if photo.Timestamp.IsZero() {
		photo.Timestamp = c.now()
	}
	local := photo.Timestamp.In(c.loc)

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"PK":          &types.AttributeValueMemberS{Value: userPK(photo.UserID)},
			"SK":          &types.AttributeValueMemberS{Value: skPrefixPhoto + local.Format(localStamp) + "#" + shortID()},
			"userId":      &types.AttributeValueMemberS{Value: photo.UserID},
			"photoUrl":    &types.AttributeValueMemberS{Value: photo.PhotoURL},
			"description": &types.AttributeValueMemberS{Value: photo.Description},
			"ts":          &types.AttributeValueMemberS{Value: local.Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: PutPhoto: %w", err)
	}
	return nil
}

// FindPhotosByDate returns the photos uploaded on date (YYYY-MM-DD, in the
// client's zone), newest first.
func (c *Client) FindPhotosByDate(ctx context.Context, userID, date string) ([]domain.PhotoRecord, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, fmt.Errorf("repository: FindPhotosByDate: invalid date %q: %w", date, err)
	}

	out, err := c.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND SK BETWEEN :from AND :to"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":   &types.AttributeValueMemberS{Value: userPK(userID)},
			":from": &types.AttributeValueMemberS{Value: skPrefixPhoto + date + "T00:00:00"},
			":to":   &types.AttributeValueMemberS{Value: skPrefixPhoto + date + "T23:59:59.999999~"},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(100),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: FindPhotosByDate query: %w", err)
	}

	photos := make([]domain.PhotoRecord, 0, len(out.Items))
	for _, item := range out.Items {
		p, err := itemToPhoto(item)
		if err != nil {
			return nil, fmt.Errorf("repository: FindPhotosByDate unmarshal: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, nil
}

// PutSchedule stores a schedule entry. A zero timestamp means now.
func (c *Client) PutSchedule(ctx context.Context, entry domain.ScheduleEntry) error {
	if strings.TrimSpace(entry.UserID) == "" {
		return errors.New("repository: PutSchedule: user id is required")
	}
	if _, err := time.Parse(dateLayout, entry.Date); err != nil {
		return fmt.Errorf("repository: PutSchedule: invalid date %q: %w", entry.Date, err)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = c.now()
	}
	created := entry.Timestamp.UTC().Format(time.RFC3339Nano)

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"PK":     &types.AttributeValueMemberS{Value: userPK(entry.UserID)},
			"SK":     &types.AttributeValueMemberS{Value: skPrefixSched + entry.Date + "#" + created + "#" + shortID()},
			"userId": &types.AttributeValueMemberS{Value: entry.UserID},
			"name":   &types.AttributeValueMemberS{Value: entry.Name},
			"date":   &types.AttributeValueMemberS{Value: entry.Date},
			"time":   &types.AttributeValueMemberS{Value: entry.Time},
			"ts":     &types.AttributeValueMemberS{Value: created},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: PutSchedule: %w", err)
	}
	return nil
}

// FindSchedules returns the entries for date, most recently stored first.
func (c *Client) FindSchedules(ctx context.Context, userID, date string) ([]domain.ScheduleEntry, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, fmt.Errorf("repository: FindSchedules: invalid date %q: %w", date, err)
	}

	out, err := c.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: userPK(userID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixSched + date + "#"},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(10),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: FindSchedules query: %w", err)
	}

	entries := make([]domain.ScheduleEntry, 0, len(out.Items))
	for _, item := range out.Items {
		e, err := itemToSchedule(item)
		if err != nil {
			return nil, fmt.Errorf("repository: FindSchedules unmarshal: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func turnItem(userID string, turn domain.ConversationTurn, ttl int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":     &types.AttributeValueMemberS{Value: userPK(userID)},
		"SK":     &types.AttributeValueMemberS{Value: msgSK(turn.Timestamp)},
		"userId": &types.AttributeValueMemberS{Value: userID},
		"role":   &types.AttributeValueMemberS{Value: string(turn.Role)},
		"text":   &types.AttributeValueMemberS{Value: turn.Text},
		"ts":     &types.AttributeValueMemberS{Value: turn.Timestamp.UTC().Format(time.RFC3339Nano)},
		"ttl":    &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
	}
}

func itemToTurn(item map[string]types.AttributeValue) (domain.ConversationTurn, error) {
	role, err := strAttr(item, "role")
	if err != nil {
		return domain.ConversationTurn{}, err
	}
	text, err := strAttr(item, "text")
	if err != nil {
		return domain.ConversationTurn{}, err
	}
	ts, err := timeAttr(item, "ts")
	if err != nil {
		return domain.ConversationTurn{}, err
	}
	turn := domain.ConversationTurn{Role: domain.Role(role), Text: text, Timestamp: ts}
	if !turn.Role.Valid() {
		return domain.ConversationTurn{}, fmt.Errorf("repository: invalid role %q", role)
	}
	return turn, nil
}

func itemToPhoto(item map[string]types.AttributeValue) (domain.PhotoRecord, error) {
	userID, err := strAttr(item, "userId")
	if err != nil {
		return domain.PhotoRecord{}, err
	}
	url, err := strAttr(item, "photoUrl")
	if err != nil {
		return domain.PhotoRecord{}, err
	}
	ts, err := timeAttr(item, "ts")
	if err != nil {
		return domain.PhotoRecord{}, err
	}
	desc, _ := strAttr(item, "description") // allow empty
	return domain.PhotoRecord{UserID: userID, PhotoURL: url, Description: desc, Timestamp: ts}, nil
}

func itemToSchedule(item map[string]types.AttributeValue) (domain.ScheduleEntry, error) {
	userID, err := strAttr(item, "userId")
	if err != nil {
		return domain.ScheduleEntry{}, err
	}
	date, err := strAttr(item, "date")
	if err != nil {
		return domain.ScheduleEntry{}, err
	}
	name, _ := strAttr(item, "name")
	hhmm, _ := strAttr(item, "time")
	ts, err := timeAttr(item, "ts")
	if err != nil {
		return domain.ScheduleEntry{}, err
	}
	return domain.ScheduleEntry{UserID: userID, Name: name, Date: date, Time: hhmm, Timestamp: ts}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func timeAttr(item map[string]types.AttributeValue, key string) (time.Time, error) {
	s, err := strAttr(item, key)
	if err != nil {
		return time.Time{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return ts, nil
}
