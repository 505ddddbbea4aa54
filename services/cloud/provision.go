package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewayv2"
	apigwtypes "github.com/aws/aws-sdk-go-v2/service/apigatewayv2/types"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/rs/zerolog"
)

const (
	sessionKey         = "sender_id"
	basicExecutionARN  = "arn:aws:iam::aws:policy/service-role/AWSLambdaBasicExecutionRole"
	invokeStatementID  = "uxy-apigateway-invoke"
	defaultRoleRetries = 6
)

// DynamoDBAPI creates the session table.
type DynamoDBAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// IAMAPI creates the function execution role.
type IAMAPI interface {
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	AttachRolePolicy(ctx context.Context, params *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error)
	PutRolePolicy(ctx context.Context, params *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error)
}

// FunctionAPI creates the function and grants the HTTP API access to it.
type FunctionAPI interface {
	CreateFunction(ctx context.Context, params *lambda.CreateFunctionInput, optFns ...func(*lambda.Options)) (*lambda.CreateFunctionOutput, error)
	GetFunction(ctx context.Context, params *lambda.GetFunctionInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error)
	AddPermission(ctx context.Context, params *lambda.AddPermissionInput, optFns ...func(*lambda.Options)) (*lambda.AddPermissionOutput, error)
}

// GatewayAPI creates the public HTTP endpoint.
type GatewayAPI interface {
	CreateApi(ctx context.Context, params *apigatewayv2.CreateApiInput, optFns ...func(*apigatewayv2.Options)) (*apigatewayv2.CreateApiOutput, error)
}

// Names are the remote resource names derived from an app and stage.
type Names struct {
	Table    string
	Role     string
	Function string
	API      string
}

// ResourceNames derives the names of every provisioned resource.
func ResourceNames(app, stage string) Names {
	return Names{
		Table:    fmt.Sprintf("%s-uxy-session-%s", app, stage),
		Role:     fmt.Sprintf("%s-uxy-role-%s", app, stage),
		Function: fmt.Sprintf("%s-uxy-app-%s", app, stage),
		API:      fmt.Sprintf("%s-uxy-api-%s", app, stage),
	}
}

// ProvisionRequest describes the function to create.
type ProvisionRequest struct {
	App      string
	Stage    string
	Runtime  string
	Handler  string
	Artifact Artifact
}

// Resources are the identifiers recorded in the blueprint after setup.
type Resources struct {
	TableName    string
	RoleARN      string
	FunctionName string
	FunctionARN  string
	APIID        string
	InvokeURL    string
}

// Provisioner creates the remote resources of a new project. Every step
// tolerates resources that already exist so setup can be re-run.
type Provisioner struct {
	dynamo  DynamoDBAPI
	iam     IAMAPI
	lambda  FunctionAPI
	gateway GatewayAPI
	logger  zerolog.Logger

	// RoleRetryDelay separates CreateFunction attempts while a new role propagates.
	RoleRetryDelay time.Duration
}

// NewProvisioner wires the service clients.
func NewProvisioner(dynamo DynamoDBAPI, iamAPI IAMAPI, fn FunctionAPI, gateway GatewayAPI, logger zerolog.Logger) (*Provisioner, error) {
	if dynamo == nil || iamAPI == nil || fn == nil || gateway == nil {
		return nil, errors.New("dynamodb, iam, lambda and apigateway clients are required")
	}
	return &Provisioner{
		dynamo:         dynamo,
		iam:            iamAPI,
		lambda:         fn,
		gateway:        gateway,
		logger:         logger,
		RoleRetryDelay: 5 * time.Second,
	}, nil
}

// Provision creates the session table, execution role, function and HTTP API.
func (p *Provisioner) Provision(ctx context.Context, req ProvisionRequest) (Resources, error) {
	if req.App == "" || req.Stage == "" {
		return Resources{}, errors.New("app and stage are required")
	}
	if req.Runtime == "" || req.Handler == "" {
		return Resources{}, errors.New("runtime and handler are required")
	}
	names := ResourceNames(req.App, req.Stage)

	if err := p.createTable(ctx, names.Table); err != nil {
		return Resources{}, err
	}
	roleARN, err := p.createRole(ctx, names)
	if err != nil {
		return Resources{}, err
	}
	functionARN, err := p.createFunction(ctx, names, roleARN, req)
	if err != nil {
		return Resources{}, err
	}
	apiID, endpoint, err := p.createAPI(ctx, names.API, functionARN)
	if err != nil {
		return Resources{}, err
	}
	if err := p.allowInvoke(ctx, names.Function, functionARN, apiID); err != nil {
		return Resources{}, err
	}

	return Resources{
		TableName:    names.Table,
		RoleARN:      roleARN,
		FunctionName: names.Function,
		FunctionARN:  functionARN,
		APIID:        apiID,
		InvokeURL:    endpoint,
	}, nil
}

func (p *Provisioner) createTable(ctx context.Context, name string) error {
	_, err := p.dynamo.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(name),
		AttributeDefinitions: []dynamotypes.AttributeDefinition{
			{AttributeName: aws.String(sessionKey), AttributeType: dynamotypes.ScalarAttributeTypeS},
		},
		KeySchema: []dynamotypes.KeySchemaElement{
			{AttributeName: aws.String(sessionKey), KeyType: dynamotypes.KeyTypeHash},
		},
		BillingMode: dynamotypes.BillingModePayPerRequest,
	})
	var inUse *dynamotypes.ResourceInUseException
	switch {
	case errors.As(err, &inUse):
		p.logger.Info().Ctx(ctx).Str("table", name).Msg("session table already exists")
	case err != nil:
		return fmt.Errorf("create table %s: %w", name, err)
	default:
		p.logger.Info().Ctx(ctx).Str("table", name).Msg("session table created")
	}
	return nil
}

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect    string            `json:"Effect"`
	Action    []string          `json:"Action"`
	Resource  string            `json:"Resource,omitempty"`
	Principal map[string]string `json:"Principal,omitempty"`
}

func (p *Provisioner) createRole(ctx context.Context, names Names) (string, error) {
	trust, err := json.Marshal(policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:    "Allow",
			Action:    []string{"sts:AssumeRole"},
			Principal: map[string]string{"Service": "lambda.amazonaws.com"},
		}},
	})
	if err != nil {
		return "", err
	}

	var roleARN string
	out, err := p.iam.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(names.Role),
		AssumeRolePolicyDocument: aws.String(string(trust)),
		Description:              aws.String("uxy execution role for " + names.Function),
	})
	var exists *iamtypes.EntityAlreadyExistsException
	switch {
	case errors.As(err, &exists):
		got, err := p.iam.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(names.Role)})
		if err != nil {
			return "", fmt.Errorf("get role %s: %w", names.Role, err)
		}
		roleARN = aws.ToString(got.Role.Arn)
	case err != nil:
		return "", fmt.Errorf("create role %s: %w", names.Role, err)
	default:
		roleARN = aws.ToString(out.Role.Arn)
	}

	if _, err := p.iam.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  aws.String(names.Role),
		PolicyArn: aws.String(basicExecutionARN),
	}); err != nil {
		return "", fmt.Errorf("attach execution policy: %w", err)
	}

	access, err := json.Marshal(policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:   "Allow",
			Action:   []string{"dynamodb:GetItem", "dynamodb:PutItem", "dynamodb:UpdateItem", "dynamodb:DeleteItem", "dynamodb:Query"},
			Resource: "arn:aws:dynamodb:*:*:table/" + names.Table,
		}},
	})
	if err != nil {
		return "", err
	}
	if _, err := p.iam.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       aws.String(names.Role),
		PolicyName:     aws.String(names.Table + "-access"),
		PolicyDocument: aws.String(string(access)),
	}); err != nil {
		return "", fmt.Errorf("put session table policy: %w", err)
	}

	p.logger.Info().Ctx(ctx).Str("role", roleARN).Msg("execution role ready")
	return roleARN, nil
}

func (p *Provisioner) createFunction(ctx context.Context, names Names, roleARN string, req ProvisionRequest) (string, error) {
	input := &lambda.CreateFunctionInput{
		FunctionName: aws.String(names.Function),
		Role:         aws.String(roleARN),
		Runtime:      lambdatypes.Runtime(req.Runtime),
		Handler:      aws.String(req.Handler),
		Code:         &lambdatypes.FunctionCode{ZipFile: req.Artifact.Data},
		Timeout:      aws.Int32(30),
		Environment: &lambdatypes.Environment{Variables: map[string]string{
			"UXY_SESSION_TABLE": names.Table,
			"UXY_STAGE":         req.Stage,
		}},
	}

	for attempt := 1; ; attempt++ {
		out, err := p.lambda.CreateFunction(ctx, input)
		if err == nil {
			p.logger.Info().Ctx(ctx).Str("function", names.Function).Msg("function created")
			return aws.ToString(out.FunctionArn), nil
		}

		var conflict *lambdatypes.ResourceConflictException
		if errors.As(err, &conflict) {
			got, err := p.lambda.GetFunction(ctx, &lambda.GetFunctionInput{FunctionName: aws.String(names.Function)})
			if err != nil {
				return "", fmt.Errorf("get function %s: %w", names.Function, err)
			}
			p.logger.Info().Ctx(ctx).Str("function", names.Function).Msg("function already exists")
			return aws.ToString(got.Configuration.FunctionArn), nil
		}

		// A freshly created role is not assumable until IAM propagates it.
		var invalid *lambdatypes.InvalidParameterValueException
		if !errors.As(err, &invalid) || !strings.Contains(invalid.ErrorMessage(), "role") || attempt >= defaultRoleRetries {
			return "", fmt.Errorf("create function %s: %w", names.Function, err)
		}
		p.logger.Debug().Ctx(ctx).Int("attempt", attempt).Msg("execution role not assumable yet, retrying")
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(p.RoleRetryDelay):
		}
	}
}

func (p *Provisioner) createAPI(ctx context.Context, name, functionARN string) (string, string, error) {
	out, err := p.gateway.CreateApi(ctx, &apigatewayv2.CreateApiInput{
		Name:         aws.String(name),
		ProtocolType: apigwtypes.ProtocolTypeHttp,
		Target:       aws.String(functionARN),
	})
	if err != nil {
		return "", "", fmt.Errorf("create http api %s: %w", name, err)
	}
	p.logger.Info().Ctx(ctx).Str("api", aws.ToString(out.ApiId)).Msg("http api created")
	return aws.ToString(out.ApiId), aws.ToString(out.ApiEndpoint), nil
}

func (p *Provisioner) allowInvoke(ctx context.Context, function, functionARN, apiID string) error {
	region, account, err := arnRegionAccount(functionARN)
	if err != nil {
		return err
	}
	_, err = p.lambda.AddPermission(ctx, &lambda.AddPermissionInput{
		FunctionName: aws.String(function),
		StatementId:  aws.String(invokeStatementID),
		Action:       aws.String("lambda:InvokeFunction"),
		Principal:    aws.String("apigateway.amazonaws.com"),
		SourceArn:    aws.String(fmt.Sprintf("arn:aws:execute-api:%s:%s:%s/*/*", region, account, apiID)),
	})
	var conflict *lambdatypes.ResourceConflictException
	if err != nil && !errors.As(err, &conflict) {
		return fmt.Errorf("grant api invoke permission: %w", err)
	}
	return nil
}

// arnRegionAccount extracts region and account from arn:partition:service:region:account:resource.
func arnRegionAccount(arn string) (string, string, error) {
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) != 6 || parts[0] != "arn" || parts[3] == "" || parts[4] == "" {
		return "", "", fmt.Errorf("invalid arn %q", arn)
	}
	return parts[3], parts[4], nil
}
