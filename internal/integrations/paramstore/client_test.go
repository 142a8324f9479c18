package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

// fakeAPI is a simple fake implementing ssmAPI for tests.
type fakeAPI struct {
	getOut  *ssm.GetParameterOutput
	getErr  error
	lastReq *ssm.GetParameterInput
}

func (f *fakeAPI) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.lastReq = in
	return f.getOut, f.getErr
}

func strPtr(s string) *string { return &s }

func valueOut(v string) *ssm.GetParameterOutput {
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p"), Value: strPtr(v)}}
}

func mustNew(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	c, err := New(api, "/jarvis/")
	require.NoError(t, err)
	return c
}

func TestGetParameter_ResolvesUnderPrefix(t *testing.T) {
	api := &fakeAPI{getOut: valueOut(`{"k":"v"}`)}
	c := mustNew(t, api)
	v, err := c.GetParameter(context.Background(), "open-ai-token")
	require.NoError(t, err)
	require.Equal(t, `{"k":"v"}`, v)
	require.Equal(t, "/jarvis/open-ai-token", *api.lastReq.Name)
	require.True(t, *api.lastReq.WithDecryption)
}

func TestGetParameter_AbsoluteName(t *testing.T) {
	api := &fakeAPI{getOut: valueOut("x")}
	c := mustNew(t, api)
	_, err := c.GetParameter(context.Background(), "/other/name")
	require.NoError(t, err)
	require.Equal(t, "/other/name", *api.lastReq.Name)
}

func TestGetParameter_MissingValue(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p")}}}
	c := mustNew(t, api)
	_, err := c.GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing value")
}

func TestGetParameter_ApiError(t *testing.T) {
	c := mustNew(t, &fakeAPI{getErr: errors.New("boom")})
	_, err := c.GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "boom")
}

func TestGetParameter_ClientNotInitialized(t *testing.T) {
	_, err := (&Client{}).GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not initialized")
}

func TestGetParameter_EmptyName(t *testing.T) {
	c := mustNew(t, &fakeAPI{})
	_, err := c.GetParameter(context.Background(), "  ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "required")
}

func TestGetToken(t *testing.T) {
	c := mustNew(t, &fakeAPI{getOut: valueOut(`{"token":"sk-from-ssm"}`)})
	tok, err := c.GetToken(context.Background(), "open-ai-token")
	require.NoError(t, err)
	require.Equal(t, "sk-from-ssm", tok)

	c = mustNew(t, &fakeAPI{getOut: valueOut(`{"other":"value"}`)})
	_, err = c.GetToken(context.Background(), "open-ai-token")
	require.ErrorContains(t, err, "is empty")

	c = mustNew(t, &fakeAPI{getOut: valueOut(`{"broken`)})
	_, err = c.GetToken(context.Background(), "open-ai-token")
	require.ErrorContains(t, err, "unmarshal")

	c = mustNew(t, &fakeAPI{getErr: errors.New("ssm unavailable")})
	_, err = c.GetToken(context.Background(), "open-ai-token")
	require.ErrorContains(t, err, "ssm unavailable")
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "/jarvis")
	require.ErrorContains(t, err, "must not be nil")

	_, err = New(&fakeAPI{}, " / ")
	require.Error(t, err)
}
