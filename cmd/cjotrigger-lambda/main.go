// Command cjotrigger-lambda hosts the opportunity webhook behind a Lambda
// function URL or API Gateway HTTP API.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/aws/aws-sdk-go/service/ssm/ssmiface"
	"github.com/jimmo120313/CJOPlugin/trigger"
	"github.com/jimmo120313/CJOPlugin/webhook"
	"github.com/pkg/errors"
)

// TokenParameterEnvVar names the SSM parameter holding the Dataverse bearer token.
const TokenParameterEnvVar = "DATAVERSE_TOKEN_PARAMETER"

func main() {
	config, err := trigger.LoadConfigFromEnvironment()
	if err != nil {
		panic(err)
	}

	if name := os.Getenv(TokenParameterEnvVar); name != "" {
		sess, err := session.NewSession()
		if err != nil {
			panic(err)
		}
		config.API.Keys.Dataverse, err = readToken(context.Background(), ssm.New(sess), name)
		if err != nil {
			panic(err)
		}
	}

	shutdown, err := trigger.InitTracing(context.Background(), config.Tracing)
	if err != nil {
		panic(err)
	}
	defer shutdown(context.Background())

	h := &Handler{
		Key:      config.Webhook.Key,
		Executor: trigger.NewNotifier(config, trigger.LogTracer{}),
	}
	lambda.Start(h.Handle)
}

func readToken(ctx context.Context, api ssmiface.SSMAPI, name string) (string, error) {
	out, err := api.GetParameterWithContext(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to read parameter %s", name)
	}
	if out.Parameter == nil || aws.StringValue(out.Parameter.Value) == "" {
		return "", errors.Errorf("parameter %s is empty", name)
	}
	return aws.StringValue(out.Parameter.Value), nil
}

type Handler struct {
	Key      string
	Executor webhook.Executor
}

func (h *Handler) Handle(ctx context.Context, event *events.APIGatewayV2HTTPRequest) (*events.APIGatewayV2HTTPResponse, error) {
	provided := event.QueryStringParameters["code"]
	if provided == "" {
		provided = header(event.Headers, webhook.KeyHeader)
	}
	if !webhook.Authorized(h.Key, provided) {
		return respond(http.StatusUnauthorized, webhook.Response{Error: "invalid webhook key"})
	}

	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return respond(http.StatusBadRequest, webhook.Response{Error: "body is not valid base64"})
		}
		body = decoded
	}

	status, resp := webhook.HandlePayload(ctx, h.Executor, body)
	if status >= http.StatusInternalServerError {
		log.Printf("Warning: webhook failed %s", resp.Error)
	}
	return respond(status, resp)
}

func respond(status int, resp webhook.Response) (*events.APIGatewayV2HTTPResponse, error) {
	b, err := json.Marshal(resp)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(b),
	}, nil
}

// header looks name up case-insensitively; function URLs lower-case header names.
func header(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
