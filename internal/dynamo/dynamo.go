// Package dynamo stores the ledger in a single DynamoDB table. Every item of a
// user shares the partition key USER#<id>; transactions sort by timestamp so a
// window is one key-condition query.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"smartsave/internal/core"
	"smartsave/internal/ledger"
)

const (
	attrPK     = "pk"
	attrSK     = "sk"
	profileSK  = "PROFILE"
	txPrefix   = "TX#"
	userPrefix = "USER#"
)

// API is the part of the DynamoDB client the store uses.
type API interface {
	dynamodb.QueryAPIClient
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Config holds the connection settings.
type Config struct {
	Region    string
	TableName string
	Endpoint  string // optional, e.g. http://localhost:8000 for DynamoDB Local
}

type Store struct {
	client API
	table  string
	logger *slog.Logger
}

var _ ledger.Store = (*Store)(nil)

type transactionItem struct {
	PK                string `dynamodbav:"pk"`
	SK                string `dynamodbav:"sk"`
	ID                string `dynamodbav:"id"`
	UserID            string `dynamodbav:"userId"`
	Description       string `dynamodbav:"description"`
	Amount            string `dynamodbav:"amount"`
	Type              string `dynamodbav:"type"`
	SavingsCalculated string `dynamodbav:"savingsCalculated"`
	Timestamp         int64  `dynamodbav:"timestamp"`
	Currency          string `dynamodbav:"currency,omitempty"`
}

type profileItem struct {
	PK                string `dynamodbav:"pk"`
	SK                string `dynamodbav:"sk"`
	UserID            string `dynamodbav:"userId"`
	SavingsPercentage string `dynamodbav:"savingsPercentage"`
	StartDate         string `dynamodbav:"startDate"`
	TotalSaved        string `dynamodbav:"totalSaved"`
	Active            bool   `dynamodbav:"isActive"`
}

// New loads the default AWS configuration and builds a store.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.TableName == "" {
		return nil, errors.New("dynamodb table name is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewWithClient(client, cfg.TableName, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client API, table string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, table: table, logger: logger}
}

// Ping checks that the table exists.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return fmt.Errorf("table %s does not exist", s.table)
		}
		return fmt.Errorf("error checking table: %w", err)
	}
	return nil
}

func userKey(userID string) string { return userPrefix + userID }

// txKey orders transactions by timestamp; the id keeps keys unique.
func txKey(ts int64, id string) string { return fmt.Sprintf("%s%019d#%s", txPrefix, ts, id) }

func (s *Store) AppendTransaction(ctx context.Context, tx core.Transaction) (string, error) {
	if strings.TrimSpace(tx.UserID) == "" {
		return "", core.ErrUnauthenticated
	}
	if tx.Timestamp < 0 {
		return "", fmt.Errorf("%w: negative timestamp", core.ErrInvalidArgument)
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	item, err := attributevalue.MarshalMap(transactionItem{
		PK:                userKey(tx.UserID),
		SK:                txKey(tx.Timestamp, tx.ID),
		ID:                tx.ID,
		UserID:            tx.UserID,
		Description:       tx.Description,
		Amount:            tx.Amount.String(),
		Type:              string(core.NormalizeType(string(tx.Type))),
		SavingsCalculated: tx.SavingsCalculated.String(),
		Timestamp:         tx.Timestamp,
		Currency:          tx.Currency,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal transaction: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return "", fmt.Errorf("PutItem operation failed: %w", err)
	}
	s.logger.InfoContext(ctx, "Transaction saved to DynamoDB", "id", tx.ID, "user_id", tx.UserID, "type", tx.Type)
	return tx.ID, nil
}

// ListTransactions runs one key-condition query over the sort-key range and
// follows pagination until exhausted.
func (s *Store) ListTransactions(ctx context.Context, userID string, r ledger.Range) ([]core.Transaction, error) {
	if r.End < 0 || r.Start > r.End {
		return nil, nil
	}
	start := r.Start
	if start < 0 {
		start = 0
	}
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("pk = :pk AND sk BETWEEN :from AND :to"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":   &types.AttributeValueMemberS{Value: userKey(userID)},
			":from": &types.AttributeValueMemberS{Value: fmt.Sprintf("%s%019d#", txPrefix, start)},
			":to":   &types.AttributeValueMemberS{Value: fmt.Sprintf("%s%019d#~", txPrefix, r.End)},
		},
		ScanIndexForward: aws.Bool(true),
		ConsistentRead:   aws.Bool(true),
	}

	var out []core.Transaction
	pages := dynamodb.NewQueryPaginator(s.client, input)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("Query operation failed: %w", err)
		}
		for _, raw := range page.Items {
			var item transactionItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
			}
			tx, err := item.toCore()
			if err != nil {
				return nil, err
			}
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (core.Profile, error) {
	res, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			attrPK: &types.AttributeValueMemberS{Value: userKey(userID)},
			attrSK: &types.AttributeValueMemberS{Value: profileSK},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return core.Profile{}, fmt.Errorf("GetItem operation failed: %w", err)
	}
	if len(res.Item) == 0 {
		return core.Profile{}, ledger.ErrNotFound
	}
	var item profileItem
	if err := attributevalue.UnmarshalMap(res.Item, &item); err != nil {
		return core.Profile{}, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return item.toCore()
}

func (s *Store) SaveProfile(ctx context.Context, p core.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(profileItem{
		PK:                userKey(p.UserID),
		SK:                profileSK,
		UserID:            p.UserID,
		SavingsPercentage: p.SavingsPercentage.String(),
		StartDate:         p.StartDate.String(),
		TotalSaved:        p.TotalSaved.String(),
		Active:            p.Active,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: item}); err != nil {
		return fmt.Errorf("PutItem operation failed: %w", err)
	}
	return nil
}

// SetTotalSaved updates only totalSaved, creating a bare profile item when missing.
func (s *Store) SetTotalSaved(ctx context.Context, userID string, total decimal.Decimal) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			attrPK: &types.AttributeValueMemberS{Value: userKey(userID)},
			attrSK: &types.AttributeValueMemberS{Value: profileSK},
		},
		UpdateExpression: aws.String("SET totalSaved = :total, userId = if_not_exists(userId, :user), updatedAt = :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":total": &types.AttributeValueMemberS{Value: total.String()},
			":user":  &types.AttributeValueMemberS{Value: userID},
			":now":   &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("UpdateItem operation failed: %w", err)
	}
	return nil
}

func (i transactionItem) toCore() (core.Transaction, error) {
	amount, err := parseDecimal(i.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s amount: %w", i.ID, err)
	}
	saved, err := parseDecimal(i.SavingsCalculated)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s savingsCalculated: %w", i.ID, err)
	}
	return core.Transaction{
		ID:                i.ID,
		UserID:            i.UserID,
		Description:       i.Description,
		Amount:            amount,
		Type:              core.TransactionType(i.Type),
		SavingsCalculated: saved,
		Timestamp:         i.Timestamp,
		Currency:          i.Currency,
	}, nil
}

func (i profileItem) toCore() (core.Profile, error) {
	pct, err := parseDecimal(i.SavingsPercentage)
	if err != nil {
		return core.Profile{}, fmt.Errorf("profile savingsPercentage: %w", err)
	}
	total, err := parseDecimal(i.TotalSaved)
	if err != nil {
		return core.Profile{}, fmt.Errorf("profile totalSaved: %w", err)
	}
	p := core.Profile{
		UserID:            i.UserID,
		SavingsPercentage: pct,
		TotalSaved:        total,
		Active:            i.Active,
	}
	if i.StartDate != "" {
		if p.StartDate, err = core.ParseDate(i.StartDate); err != nil {
			return core.Profile{}, err
		}
	}
	return p, nil
}

// parseDecimal treats a missing attribute as zero.
func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
