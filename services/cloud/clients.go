package cloud

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/apigatewayv2"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
)

// Clients bundles the AWS service clients uxy talks to.
type Clients struct {
	Lambda     *lambda.Client
	DynamoDB   *dynamodb.Client
	IAM        *iam.Client
	APIGateway *apigatewayv2.Client
}

// LoadClients resolves credentials from the default chain. An empty region
// defers to AWS_REGION and the shared config.
func LoadClients(ctx context.Context, region string) (*Clients, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Clients{
		Lambda:     lambda.NewFromConfig(cfg),
		DynamoDB:   dynamodb.NewFromConfig(cfg),
		IAM:        iam.NewFromConfig(cfg),
		APIGateway: apigatewayv2.NewFromConfig(cfg),
	}, nil
}
