package blueprint

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by stores that hold no blueprint yet.
var ErrNotFound = errors.New("blueprint not found")

// Blueprint records the remote resources of a project and the configuration
// that was last deployed to them.
type Blueprint struct {
	AppName string `json:"app:name" yaml:"app:name"`
	Region  string `json:"app:region" yaml:"app:region"`
	Stage   string `json:"app:stage,omitempty" yaml:"app:stage,omitempty"`

	Checksums        map[string]string `json:"checksums" yaml:"checksums"`
	DeploymentCount  int               `json:"deployment:count" yaml:"deployment:count"`
	LastDeploymentID string            `json:"deployment:last_id,omitempty" yaml:"deployment:last_id,omitempty"`
	LastDeployedAt   *time.Time        `json:"deployment:last_at,omitempty" yaml:"deployment:last_at,omitempty"`

	Description         string   `json:"app:description" yaml:"app:description"`
	ChatbotMenu         any      `json:"chatbot:menu" yaml:"chatbot:menu"`
	ChatbotURLWhitelist []string `json:"chatbot:url_whitelist" yaml:"chatbot:url_whitelist"`

	DynamoDBName string `json:"dynamodb:name,omitempty" yaml:"dynamodb:name,omitempty"`
	IAMRoleARN   string `json:"iam:arn,omitempty" yaml:"iam:arn,omitempty"`
	LambdaARN    string `json:"lambda:arn,omitempty" yaml:"lambda:arn,omitempty"`
	LambdaName   string `json:"lambda:name,omitempty" yaml:"lambda:name,omitempty"`
	APIID        string `json:"restApi:id,omitempty" yaml:"restApi:id,omitempty"`
	InvokeURL    string `json:"restApi:url,omitempty" yaml:"restApi:url,omitempty"`
}

// New returns a blueprint that has never been deployed.
func New(appName, region string) *Blueprint {
	return &Blueprint{
		AppName:   appName,
		Region:    region,
		Checksums: map[string]string{},
	}
}

// FirstDeployment reports whether the project has never been fully deployed.
func (b *Blueprint) FirstDeployment() bool {
	return b == nil || b.DeploymentCount == 0
}

// Validate checks the invariants every stored blueprint must hold.
func (b *Blueprint) Validate() error {
	if b == nil {
		return errors.New("nil blueprint")
	}
	if b.DeploymentCount < 0 {
		return fmt.Errorf("deployment:count must not be negative, got %d", b.DeploymentCount)
	}
	return nil
}

// Clone returns a deep copy so callers can mutate the result freely.
func (b *Blueprint) Clone() *Blueprint {
	if b == nil {
		return nil
	}
	out := *b
	out.Checksums = cloneMap(b.Checksums)
	if b.ChatbotURLWhitelist != nil {
		out.ChatbotURLWhitelist = append([]string(nil), b.ChatbotURLWhitelist...)
	}
	out.ChatbotMenu = cloneValue(b.ChatbotMenu)
	if b.LastDeployedAt != nil {
		at := *b.LastDeployedAt
		out.LastDeployedAt = &at
	}
	return &out
}

func cloneMap(src map[string]string) map[string]string {
	if src == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func cloneValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, item := range value {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return value
	}
}
