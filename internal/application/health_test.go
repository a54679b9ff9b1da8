package application

import (
	"context"
	"testing"
)

func TestHealthServiceReadiness(t *testing.T) {
	service, _ := testService(&fakeSource{files: map[string]string{
		"catalog.yaml": "catalog:\n  - name: Sensors\n    type: sos\n    url: http://example.com/sos\n",
	}})
	health := NewHealthService(service)
	ctx := context.Background()

	if !health.IsHealthy(ctx) {
		t.Error("service should be healthy")
	}
	if health.IsReady(ctx) {
		t.Error("service should not be ready before the first composition")
	}

	if _, err := service.Compose(ctx); err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !health.IsReady(ctx) {
		t.Error("service should be ready after composing")
	}

	details := health.GetHealthDetails(ctx)
	if !details.Healthy || !details.Ready {
		t.Errorf("details = %+v", details)
	}
	if details.MembersComposed != 1 {
		t.Errorf("members composed = %d", details.MembersComposed)
	}
	if details.CompositionErrors != 0 {
		t.Errorf("composition errors = %d", details.CompositionErrors)
	}
	if details.Components["source"] != "ok" {
		t.Errorf("components = %v", details.Components)
	}
}
