package telephony

import (
	"errors"
	"strconv"
	"strings"

	"telecaller-platform/pkg/utils"

	"github.com/twilio/twilio-go/twiml"
)

// BridgeTwiML is executed once the lead picks up: it dials the telecaller's
// endpoint (PSTN number or sip: URI) and hangs up when the agent leg ends.
type BridgeTwiML struct {
	AgentEndpoint  string
	CallerID       string
	TimeoutSeconds int
}

var errMissingAgentEndpoint = errors.New("telephony: agent endpoint required for bridge")

func RenderBridgeTwiML(b BridgeTwiML) (string, error) {
	to := strings.TrimSpace(b.AgentEndpoint)
	if to == "" {
		return "", errMissingAgentEndpoint
	}

	dial := &twiml.VoiceDial{CallerId: b.CallerID}
	if b.TimeoutSeconds > 0 {
		dial.Timeout = strconv.Itoa(b.TimeoutSeconds)
	}
	if utils.IsSIPURI(to) {
		dial.InnerElements = []twiml.Element{&twiml.VoiceSip{SipUrl: to}}
	} else {
		dial.InnerElements = []twiml.Element{&twiml.VoiceNumber{PhoneNumber: to}}
	}

	return twiml.Voice([]twiml.Element{dial, &twiml.VoiceHangup{}})
}
