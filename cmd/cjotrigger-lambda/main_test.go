package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/aws/aws-sdk-go/service/ssm/ssmiface"
	"github.com/jimmo120313/CJOPlugin/trigger"
	"github.com/jimmo120313/CJOPlugin/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExecutor struct {
	calls int
}

func (s *stubExecutor) Execute(ctx context.Context, ec trigger.ExecutionContext) (trigger.Report, error) {
	s.calls++
	return trigger.Report{Decision: trigger.NewApproval, OpportunityID: ec.PrimaryEntityID, Journey: "Journey1"}, nil
}

func testBody(t *testing.T) string {
	b, err := os.ReadFile("../../trigger/testdata/execution_context.json")
	require.NoError(t, err)
	return string(b)
}

func TestHandle(t *testing.T) {
	exec := &stubExecutor{}
	h := &Handler{Key: "secret", Executor: exec}

	resp, err := h.Handle(context.Background(), &events.APIGatewayV2HTTPRequest{
		Headers:         map[string]string{"x-webhook-key": "secret"},
		Body:            base64.StdEncoding.EncodeToString([]byte(testBody(t))),
		IsBase64Encoded: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body webhook.Response
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	assert.Equal(t, "NewApproval", body.Decision)
	assert.Equal(t, "0b8e2f4a-1d3c-4e5f-8a9b-7c6d5e4f3a2b", body.OpportunityID)
	assert.Equal(t, 1, exec.calls)
}

func TestHandle_QueryKey(t *testing.T) {
	h := &Handler{Key: "secret", Executor: &stubExecutor{}}
	resp, err := h.Handle(context.Background(), &events.APIGatewayV2HTTPRequest{
		QueryStringParameters: map[string]string{"code": "secret"},
		Body:                  testBody(t),
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestHandle_Rejected(t *testing.T) {
	exec := &stubExecutor{}
	h := &Handler{Key: "secret", Executor: exec}

	resp, err := h.Handle(context.Background(), &events.APIGatewayV2HTTPRequest{Body: testBody(t)})
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)

	resp, err = h.Handle(context.Background(), &events.APIGatewayV2HTTPRequest{
		QueryStringParameters: map[string]string{"code": "secret"},
		Body:                  "%%%",
		IsBase64Encoded:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, 0, exec.calls)
}

type stubSSM struct {
	ssmiface.SSMAPI
	value string
}

func (s *stubSSM) GetParameterWithContext(ctx aws.Context, in *ssm.GetParameterInput, opts ...request.Option) (*ssm.GetParameterOutput, error) {
	if !aws.BoolValue(in.WithDecryption) {
		return nil, assert.AnError
	}
	return &ssm.GetParameterOutput{Parameter: &ssm.Parameter{Name: in.Name, Value: aws.String(s.value)}}, nil
}

func TestReadToken(t *testing.T) {
	token, err := readToken(context.Background(), &stubSSM{value: "token"}, "/cjotrigger/dataverse-token")
	require.NoError(t, err)
	assert.Equal(t, "token", token)

	_, err = readToken(context.Background(), &stubSSM{}, "/cjotrigger/dataverse-token")
	assert.Error(t, err)
}
