package internal

import (
	"regexp"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
)

const lambdaServiceType = "AWS::Lambda::Function"

// xrayCloudPlatform maps cloud.platform resource values to X-Ray service types.
var xrayCloudPlatform = map[string]string{
	"aws_ec2":               "AWS::EC2::Instance",
	"aws_ecs":               "AWS::ECS::Container",
	"aws_eks":               "AWS::EKS::Container",
	"aws_elastic_beanstalk": "AWS::ElasticBeanstalk::Environment",
	"aws_lambda":            lambdaServiceType,
}

// compiled wildcard patterns, keyed by pattern.
var patternCache sync.Map

// attributeMap indexes span attributes by key for rule matching.
type attributeMap map[attribute.Key]attribute.Value

func newAttributeMap(attrs []attribute.KeyValue) attributeMap {
	m := make(attributeMap, len(attrs))
	for _, kv := range attrs {
		m[kv.Key] = kv.Value
	}
	return m
}

// str returns the string form of the attribute stored under key, or nil when
// it is absent.
func (m attributeMap) str(key attribute.Key) *string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	s := v.Emit()
	return &s
}

// attributeMatch reports whether every required key is present in tags with
// an equal string representation.
func attributeMatch(tags attributeMap, required map[string]string) bool {
	for k, want := range required {
		if tags == nil {
			return false
		}
		got, ok := tags[attribute.Key(k)]
		if !ok || got.Emit() != want {
			return false
		}
	}
	return true
}

// wildcardMatch matches value against pattern, where '*' stands for any
// sequence of characters. An empty pattern or "*" matches anything, including
// a missing value.
func wildcardMatch(value *string, pattern string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	if value == nil {
		return false
	}
	return wildcardRegexp(pattern).MatchString(*value)
}

func wildcardRegexp(pattern string) *regexp.Regexp {
	if re, ok := patternCache.Load(pattern); ok {
		return re.(*regexp.Regexp)
	}
	expr := "(?s)^" + strings.ReplaceAll(regexp.QuoteMeta(pattern), `\*`, ".*") + "$"
	re := regexp.MustCompile(expr)
	patternCache.Store(pattern, re)
	return re
}

// cloudPlatformToServiceType returns the X-Ray service type for platform, or
// "" when the platform is unknown.
func cloudPlatformToServiceType(platform string) string {
	return xrayCloudPlatform[platform]
}
