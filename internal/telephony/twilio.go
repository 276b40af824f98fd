package telephony

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"telecaller-platform/internal/calls"
	"telecaller-platform/pkg/logger"

	"github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

const (
	// Webhook paths Twilio is told to call back on; routes must match.
	StatusCallbackPath    = "/webhooks/telephony/status"
	RecordingCallbackPath = "/webhooks/telephony/recording"

	defaultRESTTimeout      = 10 * time.Second
	defaultAgentRingTimeout = 25
)

var statusCallbackEvents = []string{"initiated", "ringing", "answered", "completed"}

// callCreator is the part of the Twilio REST API used to place calls.
type callCreator interface {
	CreateCall(params *openapi.CreateCallParams) (*openapi.ApiV2010Call, error)
}

type TwilioOptions struct {
	AccountSID    string
	AuthToken     string
	FromNumber    string
	PublicBaseURL string
	Region        string
	Edge          string
}

// TwilioClient places outbound calls through the Twilio REST API.
//
// The lead is dialed first; once answered, inline TwiML bridges the
// telecaller's endpoint. Status and recording callbacks are pointed at
// PublicBaseURL.
type TwilioClient struct {
	FromNumber    string
	PublicBaseURL string

	// AgentRingTimeout bounds how long the agent leg rings (seconds).
	AgentRingTimeout int

	api        callCreator
	configured bool
}

func NewTwilioClient(o TwilioOptions) *TwilioClient {
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: o.AccountSID,
		Password: o.AuthToken,
	})
	rest.SetTimeout(defaultRESTTimeout)
	if o.Region != "" {
		rest.SetRegion(o.Region)
	}
	if o.Edge != "" {
		rest.SetEdge(o.Edge)
	}
	return &TwilioClient{
		FromNumber:       o.FromNumber,
		PublicBaseURL:    strings.TrimRight(o.PublicBaseURL, "/"),
		AgentRingTimeout: defaultAgentRingTimeout,
		api:              rest.Api,
		configured:       o.AccountSID != "" && o.AuthToken != "" && o.FromNumber != "",
	}
}

// Dial implements calls.Dialer.
//
// The REST client takes no context; ctx is checked before the request and the
// client timeout bounds the request itself.
func (t *TwilioClient) Dial(ctx context.Context, req calls.DialRequest) (calls.DialResult, error) {
	log := logger.From(ctx)

	if !t.configured {
		return calls.DialResult{}, errors.New("telephony: twilio credentials not configured")
	}
	if err := ctx.Err(); err != nil {
		return calls.DialResult{}, err
	}

	twiml, err := RenderBridgeTwiML(BridgeTwiML{
		AgentEndpoint:  req.AgentEndpoint,
		CallerID:       t.FromNumber,
		TimeoutSeconds: t.AgentRingTimeout,
	})
	if err != nil {
		return calls.DialResult{}, err
	}

	params := &openapi.CreateCallParams{}
	params.SetTo(req.To)
	params.SetFrom(t.FromNumber)
	params.SetTwiml(twiml)
	params.SetStatusCallback(t.PublicBaseURL + StatusCallbackPath)
	params.SetStatusCallbackMethod(http.MethodPost)
	params.SetStatusCallbackEvent(statusCallbackEvents)
	if req.Record {
		params.SetRecord(true)
		params.SetRecordingStatusCallback(t.PublicBaseURL + RecordingCallbackPath)
		params.SetRecordingStatusCallbackMethod(http.MethodPost)
	}

	resp, err := t.api.CreateCall(params)
	if err != nil {
		var te *client.TwilioRestError
		if errors.As(err, &te) {
			log.Warn("twilio dial rejected", "call_id", req.CallID, "code", te.Code, "http_status", te.Status)
			return calls.DialResult{}, fmt.Errorf("twilio %d: %s", te.Code, te.Message)
		}
		return calls.DialResult{}, fmt.Errorf("twilio create call: %w", err)
	}
	if resp == nil || resp.Sid == nil || *resp.Sid == "" {
		return calls.DialResult{}, errors.New("twilio: response missing call sid")
	}

	log.Info("twilio call created", "call_id", req.CallID, "provider_call_id", *resp.Sid)
	return calls.DialResult{ProviderCallID: *resp.Sid}, nil
}
