package ai

import (
	"context"
	"encoding/json"
	"strings"
)

type cannedDiagnosis struct {
	keywords  []string
	diagnosis string
	steps     []string
}

var cannedDiagnoses = []cannedDiagnosis{
	{
		keywords:  []string{"printer", "print", "toner"},
		diagnosis: "Printer is offline or its queue is stuck.",
		steps:     []string{"Check the printer is powered on and shows ready", "Clear the print queue on the workstation", "Re-add the printer and print a test page"},
	},
	{
		keywords:  []string{"password", "login", "locked", "sign in"},
		diagnosis: "User account is locked or the password has expired.",
		steps:     []string{"Confirm the user's identity", "Unlock the account in the directory", "Reset the password and require a change at next sign-in"},
	},
	{
		keywords:  []string{"network", "internet", "wifi", "connection", "vpn"},
		diagnosis: "Workstation has lost network connectivity.",
		steps:     []string{"Check the network cable or Wi-Fi connection", "Renew the IP address", "Test connectivity to the gateway and escalate to networking if it fails"},
	},
	{
		keywords:  []string{"email", "outlook", "mailbox"},
		diagnosis: "Mail client cannot reach the mailbox or its profile is corrupt.",
		steps:     []string{"Check webmail access for the same account", "Restart the mail client in safe mode", "Recreate the mail profile"},
	},
}

// MockGenerator answers diagnosis prompts from a fixed keyword table. The
// same prompt always produces the same response.
type MockGenerator struct{}

func (MockGenerator) GenerateJSON(_ context.Context, _ string, prompt string) (string, error) {
	lower := strings.ToLower(prompt)
	for _, c := range cannedDiagnoses {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return encodeDiagnosis(c.diagnosis, c.steps)
			}
		}
	}
	return encodeDiagnosis("Issue needs hands-on investigation.", []string{
		"Contact the user to reproduce the problem",
		"Collect error messages and screenshots",
		"Restart the affected device or application",
	})
}

func encodeDiagnosis(diagnosis string, steps []string) (string, error) {
	raw, err := json.Marshal(map[string]any{
		"potentialDiagnosis": diagnosis,
		"suggestedSteps":     steps,
	})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
