package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/BarkinBalci/conversion-reporting-service/internal/awsconfig"
	envConfig "github.com/BarkinBalci/conversion-reporting-service/internal/config"
)

// campaignID accepts ids stored either as strings or as numbers
type campaignID string

func (c *campaignID) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		*c = campaignID(v.Value)
	case *types.AttributeValueMemberN:
		*c = campaignID(v.Value)
	case *types.AttributeValueMemberNULL:
		*c = ""
	default:
		return fmt.Errorf("unsupported campaign id attribute type %T", av)
	}
	return nil
}

type subscriptionItem struct {
	ID campaignID `dynamodbav:"id"`
}

// SubscriptionSource lists subscribed campaigns from the subscriptions table
type SubscriptionSource struct {
	api   dynamodb.ScanAPIClient
	table string
	log   *zap.Logger
}

// NewSubscriptionSource creates a DynamoDB backed subscription source
func NewSubscriptionSource(ctx context.Context, cfg envConfig.DynamoDB, log *zap.Logger) (*SubscriptionSource, error) {
	var clientOpts []func(*dynamodb.Options)
	if cfg.Endpoint != "" {
		log.Info("Configuring DynamoDB for local development", zap.String("endpoint", cfg.Endpoint))
		clientOpts = append(clientOpts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	awsCfg, err := awsconfig.Load(ctx, cfg.Region, cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	return NewSubscriptionSourceWithAPI(dynamodb.NewFromConfig(awsCfg, clientOpts...), cfg.SubscriptionsTable, log), nil
}

// NewSubscriptionSourceWithAPI wraps an existing scan client
func NewSubscriptionSourceWithAPI(api dynamodb.ScanAPIClient, table string, log *zap.Logger) *SubscriptionSource {
	return &SubscriptionSource{api: api, table: table, log: log}
}

// ListSubscribedCampaignIDs scans the whole table and returns the set of campaign ids
func (s *SubscriptionSource) ListSubscribedCampaignIDs(ctx context.Context) (map[string]struct{}, error) {
	paginator := dynamodb.NewScanPaginator(s.api, &dynamodb.ScanInput{
		TableName:            aws.String(s.table),
		ProjectionExpression: aws.String("id"),
	})

	ids := make(map[string]struct{})
	pages := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", s.table, err)
		}
		pages++

		var items []subscriptionItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal subscriptions: %w", err)
		}
		for _, item := range items {
			if item.ID != "" {
				ids[string(item.ID)] = struct{}{}
			}
		}
	}

	s.log.Info("Loaded subscribed campaigns",
		zap.String("table", s.table),
		zap.Int("count", len(ids)),
		zap.Int("pages", pages))

	return ids, nil
}
