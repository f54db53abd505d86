package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestWildcardMatch(t *testing.T) {
	tests := []struct {
		name    string
		value   *string
		pattern string
		want    bool
	}{
		{"star matches nil", nil, "*", true},
		{"empty matches nil", nil, "", true},
		{"star matches anything", strPtr("anything"), "*", true},
		{"literal requires value", nil, "abc", false},
		{"prefix", strPtr("/api/v1/x"), "/api/*", true},
		{"prefix mismatch", strPtr("/other"), "/api/*", false},
		{"exact", strPtr("GET"), "GET", true},
		{"case sensitive", strPtr("get"), "GET", false},
		{"anchored start", strPtr("x/api/y"), "/api/*", false},
		{"anchored end", strPtr("GETX"), "GET", false},
		{"inner star", strPtr("www.example.com"), "*.example.*", true},
		{"dot is literal", strPtr("abc"), "a.c", false},
		{"question mark is literal", strPtr("abc"), "a?c", false},
		{"regex meta is literal", strPtr("a+b"), "a+b", true},
		{"star spans newlines", strPtr("a\nb"), "a*b", true},
		{"empty value", strPtr(""), "*", true},
		{"empty value against literal", strPtr(""), "a", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, wildcardMatch(tt.value, tt.pattern))
		})
	}
}

func TestAttributeMatch(t *testing.T) {
	tags := newAttributeMap([]attribute.KeyValue{
		attribute.String("env", "prod"),
		attribute.Int("shard", 7),
		attribute.Bool("canary", true),
	})

	assert.True(t, attributeMatch(tags, nil))
	assert.True(t, attributeMatch(tags, map[string]string{}))
	assert.True(t, attributeMatch(tags, map[string]string{"env": "prod"}))
	assert.True(t, attributeMatch(tags, map[string]string{"shard": "7", "canary": "true"}))
	assert.False(t, attributeMatch(tags, map[string]string{"env": "dev"}))
	assert.False(t, attributeMatch(tags, map[string]string{"env": "prod", "region": "eu"}))

	assert.True(t, attributeMatch(nil, nil))
	assert.False(t, attributeMatch(nil, map[string]string{"env": "prod"}))
}

func TestCloudPlatformToServiceType(t *testing.T) {
	assert.Equal(t, "AWS::EC2::Instance", cloudPlatformToServiceType("aws_ec2"))
	assert.Equal(t, "AWS::ECS::Container", cloudPlatformToServiceType("aws_ecs"))
	assert.Equal(t, "AWS::EKS::Container", cloudPlatformToServiceType("aws_eks"))
	assert.Equal(t, "AWS::ElasticBeanstalk::Environment", cloudPlatformToServiceType("aws_elastic_beanstalk"))
	assert.Equal(t, "AWS::Lambda::Function", cloudPlatformToServiceType("aws_lambda"))
	assert.Equal(t, "", cloudPlatformToServiceType("gcp_compute_engine"))
	assert.Equal(t, "", cloudPlatformToServiceType(""))
}
