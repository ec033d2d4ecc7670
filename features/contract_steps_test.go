package features

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"eventmanagement/internal/identity"
	"eventmanagement/internal/payments/api"
	"eventmanagement/internal/payments/application"
	"eventmanagement/internal/payments/infrastructure/gateway"
	"eventmanagement/internal/payments/infrastructure/memory"
)

type contractState struct {
	server   *httptest.Server
	notifier *application.OutboxNotifier
	response *http.Response
}

func InitializeScenario(sc *godog.ScenarioContext) {
	state := &contractState{}

	sc.Step(`^the service is running$`, state.theServiceIsRunning)
	sc.Step(`^I request the health endpoint$`, state.iRequestTheHealthEndpoint)
	sc.Step(`^I buy a ticket without a credential$`, state.iBuyATicketWithoutACredential)
	sc.Step(`^the response status should be (\d+)$`, state.theResponseStatusShouldBe)
	sc.Step(`^the response should be a JSON error with code "([^"]*)"$`, state.theResponseShouldBeAJSONErrorWithCode)

	sc.After(func(ctx context.Context, scenario *godog.Scenario, err error) (context.Context, error) {
		if state.server != nil {
			state.server.Close()
		}
		if state.notifier != nil {
			state.notifier.Flush()
		}
		if state.response != nil {
			state.response.Body.Close()
		}
		return ctx, nil
	})
}

func (s *contractState) theServiceIsRunning() error {
	store := memory.NewDataStore()
	s.notifier = application.NewOutboxNotifier(store)
	service := application.NewPaymentService(
		store,
		identity.NewResolver("contract-secret"),
		gateway.NewClient("http://127.0.0.1:1", time.Second),
		s.notifier,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})
	api.NewHandler(service).RegisterRoutes(mux)

	s.server = httptest.NewServer(mux)
	return nil
}

func (s *contractState) iRequestTheHealthEndpoint() error {
	if s.server == nil {
		return fmt.Errorf("server not running")
	}
	resp, err := http.Get(s.server.URL + "/health")
	if err != nil {
		return fmt.Errorf("failed to request health endpoint: %w", err)
	}
	s.response = resp
	return nil
}

func (s *contractState) iBuyATicketWithoutACredential() error {
	if s.server == nil {
		return fmt.Errorf("server not running")
	}
	body := strings.NewReader(`{"event_id":"00000000-0000-0000-0000-000000000001","bank_password":"x"}`)
	req, err := http.NewRequest(http.MethodPut, s.server.URL+"/payments/", body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to request payments endpoint: %w", err)
	}
	s.response = resp
	return nil
}

func (s *contractState) theResponseStatusShouldBe(expected int) error {
	if s.response == nil {
		return fmt.Errorf("no response received")
	}
	if s.response.StatusCode != expected {
		return fmt.Errorf("expected status %d, got %d", expected, s.response.StatusCode)
	}
	return nil
}

func (s *contractState) theResponseShouldBeAJSONErrorWithCode(code string) error {
	if ct := s.response.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("expected JSON response, got %q", ct)
	}
	var body api.ErrorResponse
	if err := json.NewDecoder(s.response.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding error body: %w", err)
	}
	if body.Code != code {
		return fmt.Errorf("expected error code %q, got %q", code, body.Code)
	}
	return nil
}
