// Package mcasdoor wraps the Casdoor identity provider client consumed
// by the Security Facade: spec.md treats "Session" and "User" as opaque
// collaborators, and this is the concrete client that resolves them.
package mcasdoor

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"

	"github.com/corebooks/erp-core/pkg/mlog"
)

// jwtPKCertificate holds the Casdoor application's public key
// certificate used to verify tokens locally without a round trip.
// Package-level so tests can swap it without threading a field through
// every call.
var jwtPKCertificate []byte

// CasdoorConnection lazily connects to a Casdoor server and verifies it
// is reachable before handing out a client.
type CasdoorConnection struct {
	Logger mlog.Logger

	Endpoint         string
	ClientID         string
	ClientSecret     string
	OrganizationName string
	ApplicationName  string

	Client    *casdoorsdk.Client
	Connected bool
}

// Connect builds the underlying SDK client and confirms the server
// answers its health endpoint before marking the connection usable.
func (cc *CasdoorConnection) Connect() error {
	cc.Logger.Info("Connecting to casdoor...")

	if len(jwtPKCertificate) == 0 {
		err := errors.New("public key certificate isn't load")
		cc.Logger.Fatalf("public key certificate isn't load. error: %v", err)

		return err
	}

	cc.Client = casdoorsdk.NewClientWithConf(&casdoorsdk.AuthConfig{
		Endpoint:         cc.Endpoint,
		ClientId:         cc.ClientID,
		ClientSecret:     cc.ClientSecret,
		Certificate:      string(jwtPKCertificate),
		OrganizationName: cc.OrganizationName,
		ApplicationName:  cc.ApplicationName,
	})

	if !cc.healthCheck() {
		cc.Logger.Error("casdoor unhealthy...")

		err := errors.New("can't connect casdoor")
		cc.Logger.Fatalf("Casdoor.HealthCheck %v", err)

		return err
	}

	cc.Connected = true

	cc.Logger.Info("Connected to casdoor ✅ ")

	return nil
}

// GetClient returns the connected client, connecting on first use.
func (cc *CasdoorConnection) GetClient() (*casdoorsdk.Client, error) {
	if cc.Client != nil {
		return cc.Client, nil
	}

	if err := cc.Connect(); err != nil {
		cc.Logger.Infof("ERRCONECT %s", err)
		return nil, err
	}

	return cc.Client, nil
}

type healthStatus struct {
	Status string `json:"status"`
}

// healthCheck issues a plain GET against Endpoint and expects a JSON
// body reporting {"status": "ok"}.
func (cc *CasdoorConnection) healthCheck() bool {
	resp, err := http.Get(cc.Endpoint)
	if err != nil {
		cc.Logger.Errorf("failed to make GET request: %v", err)
		return false
	}
	defer resp.Body.Close()

	var status healthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		cc.Logger.Errorf("failed to unmarshal response: %v", err)
		return false
	}

	if status.Status != "ok" {
		cc.Logger.Error("casdoor unhealthy...")
		return false
	}

	return true
}
