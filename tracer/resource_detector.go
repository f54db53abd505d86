package tracer

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/host"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const (
	lambdaFunctionNameEnv    = "AWS_LAMBDA_FUNCTION_NAME"
	lambdaFunctionVersionEnv = "AWS_LAMBDA_FUNCTION_VERSION"
	awsRegionEnv             = "AWS_REGION"
	ecsMetadataV4Env         = "ECS_CONTAINER_METADATA_URI_V4"
	ecsMetadataV3Env         = "ECS_CONTAINER_METADATA_URI"
	serviceNameEnv           = "OTEL_SERVICE_NAME"

	ecsMetadataTimeout = 2 * time.Second
)

type ecsContainerMetadata struct {
	ContainerARN string `json:"ContainerARN"`
	DockerID     string `json:"DockerId"`
}

// DetectResource describes the running process for rule matching: the service
// name, the AWS platform it runs on and the host. serviceName wins over
// OTEL_SERVICE_NAME. Failing to query the ECS metadata endpoint is an error;
// missing host information is not.
func DetectResource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	var attrs []attribute.KeyValue

	if serviceName == "" {
		serviceName = os.Getenv(serviceNameEnv)
	}
	if serviceName != "" {
		attrs = append(attrs, semconv.ServiceNameKey.String(serviceName))
	}

	switch {
	case os.Getenv(lambdaFunctionNameEnv) != "":
		attrs = append(attrs, lambdaAttributes()...)
	case os.Getenv(ecsMetadataV4Env) != "":
		ecs, err := ecsAttributes(ctx, os.Getenv(ecsMetadataV4Env))
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, ecs...)
	case os.Getenv(ecsMetadataV3Env) != "":
		attrs = append(attrs, semconv.CloudProviderAWS, semconv.CloudPlatformAWSECS)
	}

	if info, err := host.InfoWithContext(ctx); err == nil {
		attrs = append(attrs, hostAttributes(info)...)
	}

	return resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
}

func lambdaAttributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.CloudProviderAWS,
		semconv.CloudPlatformAWSLambda,
		semconv.FaaSNameKey.String(os.Getenv(lambdaFunctionNameEnv)),
	}
	if v := os.Getenv(lambdaFunctionVersionEnv); v != "" {
		attrs = append(attrs, semconv.FaaSVersionKey.String(v))
	}
	if v := os.Getenv(awsRegionEnv); v != "" {
		attrs = append(attrs, semconv.CloudRegionKey.String(v))
	}
	return attrs
}

func ecsAttributes(ctx context.Context, metadataURI string) ([]attribute.KeyValue, error) {
	ctx, cancel := context.WithTimeout(ctx, ecsMetadataTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataURI, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create ecs metadata request error")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "query ecs metadata error")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("query ecs metadata error: unexpected status code %d", resp.StatusCode)
	}

	var metadata ecsContainerMetadata
	if err := json.NewDecoder(resp.Body).Decode(&metadata); err != nil {
		return nil, errors.Wrap(err, "decode ecs metadata error")
	}

	attrs := []attribute.KeyValue{semconv.CloudProviderAWS, semconv.CloudPlatformAWSECS}
	if metadata.ContainerARN != "" {
		attrs = append(attrs, semconv.AWSECSContainerARNKey.String(metadata.ContainerARN))
	}
	if metadata.DockerID != "" {
		attrs = append(attrs, semconv.ContainerIDKey.String(metadata.DockerID))
	}
	return attrs, nil
}

func hostAttributes(info *host.InfoStat) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if info.Hostname != "" {
		attrs = append(attrs, semconv.HostNameKey.String(info.Hostname))
	}
	if info.HostID != "" {
		attrs = append(attrs, semconv.HostIDKey.String(info.HostID))
	}
	if info.OS != "" {
		attrs = append(attrs, semconv.OSTypeKey.String(info.OS))
	}
	return attrs
}
